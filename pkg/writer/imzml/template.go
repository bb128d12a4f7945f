package imzml

import "strings"

// Render substitutes the placeholders of view. A placeholder is a key
// enclosed by the delimiters from and to, for example {key}. A missing key
// renders as the empty string.
//
// A block {#key}...{/key} is kept, without its tags, when key exists in
// values and dropped entirely otherwise. Blocks cannot be nested and the
// closing tag is not matched against the opening key: the first {/...}
// after an opening tag ends the block. An opening tag without closing tag
// drops or keeps everything up to the end of view.
func Render(view string, values map[string]string, from, to byte) string {
	var b strings.Builder
	b.Grow(len(view))

	inBlock, skipping := false, false
	o := 0
	for o < len(view) {
		p := strings.IndexByte(view[o:], from)
		if p < 0 {
			break
		}
		p += o
		c := strings.IndexByte(view[p+1:], to)
		if c < 0 {
			break
		}
		c += p + 1

		if !skipping {
			b.WriteString(view[o:p])
		}
		key := view[p+1 : c]
		switch {
		case !inBlock && strings.HasPrefix(key, "#"):
			_, ok := values[key[1:]]
			inBlock, skipping = true, !ok
		case inBlock && strings.HasPrefix(key, "/"):
			inBlock, skipping = false, false
		case !skipping:
			b.WriteString(values[key])
		}
		o = c + 1
	}
	if !skipping && o < len(view) {
		b.WriteString(view[o:])
	}
	return b.String()
}

// RenderBraces is Render with { and } delimiters.
func RenderBraces(view string, values map[string]string) string {
	return Render(view, values, '{', '}')
}

const headerTemplate = `<?xml version="1.0" encoding="ISO-8859-1"?>
{#indexed}<indexedmzML xmlns="http://psi.hupo.org/ms/mzml" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="http://psi.hupo.org/ms/mzml http://psidev.info/files/ms/mzML/xsd/mzML1.1.2_idx.xsd">
{/indexed}<mzML xmlns="http://psi.hupo.org/ms/mzml" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="http://psi.hupo.org/ms/mzml http://psidev.info/files/ms/mzML/xsd/mzML1.1.0_idx.xsd" version="1.1">
<cvList count="3">
<cv id="MS" fullName="Proteomics Standards Initiative Mass Spectrometry Ontology" version="1.3.1" URI="http://psidev.info/ms/mzML/psi-ms.obo"/>
<cv id="UO" fullName="Unit Ontology" version="1.15" URI="http://obo.cvs.sourceforge.net/obo/obo/ontology/phenotype/unit.obo"/>
<cv id="IMS" fullName="Imaging MS Ontology" version="0.9.1" URI="http://www.maldi-msi.org/download/imzml/imagingMS.obo"/>
</cvList>
<fileDescription>
<fileContent>
<cvParam cvRef="MS" accession="MS:1000294" name="mass spectrum" value=""/>
<cvParam cvRef="MS" accession="MS:{spectrumtype_code}" name="{spectrumtype}" value=""/>
<cvParam cvRef="IMS" accession="IMS:{mode_code}" name="{mode}" value=""/>
<cvParam cvRef="IMS" accession="IMS:1000080" name="universally unique identifier" value="{uuid}"/>
<cvParam cvRef="IMS" accession="IMS:1000091" name="ibd SHA-1" value="{sha1sum}"/>
</fileContent>
</fileDescription>
<referenceableParamGroupList count="3">
<referenceableParamGroup id="spectrum">
<cvParam cvRef="MS" accession="MS:1000294" name="mass spectrum" value=""/>
<cvParam cvRef="MS" accession="MS:{spectrumtype_code}" name="{spectrumtype}" value=""/>
{#polarity}<cvParam cvRef="MS" accession="MS:{polarity_code}" name="{polarity}" value=""/>
{/polarity}</referenceableParamGroup>
<referenceableParamGroup id="mzArray">
<cvParam cvRef="MS" accession="MS:1000514" name="m/z array" value=""/>
<cvParam cvRef="MS" accession="MS:{mz_data_type_code}" name="{mz_data_type}" value=""/>
<cvParam cvRef="MS" accession="MS:{mz_compression_code}" name="{mz_compression}" value=""/>
<cvParam cvRef="IMS" accession="IMS:1000101" name="external data" value="true"/>
</referenceableParamGroup>
<referenceableParamGroup id="intensityArray">
<cvParam cvRef="MS" accession="MS:1000515" name="intensity array" value=""/>
<cvParam cvRef="MS" accession="MS:{int_data_type_code}" name="{int_data_type}" value=""/>
<cvParam cvRef="MS" accession="MS:{int_compression_code}" name="{int_compression}" value=""/>
<cvParam cvRef="IMS" accession="IMS:1000101" name="external data" value="true"/>
</referenceableParamGroup>
</referenceableParamGroupList>
<softwareList count="1">
<software id="ImzKey" version="{version}">
<cvParam cvRef="MS" accession="MS:1000799" name="custom unreleased software tool" value="ImzKey"/>
</software>
</softwareList>
<scanSettingsList count="1">
<scanSettings id="scanSettings1">
<cvParam cvRef="IMS" accession="IMS:1000042" name="max count of pixels x" value="{size_x}"/>
<cvParam cvRef="IMS" accession="IMS:1000043" name="max count of pixels y" value="{size_y}"/>
<cvParam cvRef="IMS" accession="IMS:1000044" name="max dimension x" value="{max dimension x}" unitCvRef="UO" unitAccession="UO:0000017" unitName="micrometer"/>
<cvParam cvRef="IMS" accession="IMS:1000045" name="max dimension y" value="{max dimension y}" unitCvRef="UO" unitAccession="UO:0000017" unitName="micrometer"/>
<cvParam cvRef="IMS" accession="IMS:1000046" name="pixel size x" value="{pixel size x}" unitCvRef="UO" unitAccession="UO:0000017" unitName="micrometer"/>
<cvParam cvRef="IMS" accession="IMS:1000047" name="pixel size y" value="{pixel size y}" unitCvRef="UO" unitAccession="UO:0000017" unitName="micrometer"/>
{#origin x}<cvParam cvRef="IMS" accession="IMS:1000053" name="absolute position offset x" value="{origin x}" unitCvRef="UO" unitAccession="UO:0000017" unitName="micrometer"/>
{/origin x}{#origin y}<cvParam cvRef="IMS" accession="IMS:1000054" name="absolute position offset y" value="{origin y}" unitCvRef="UO" unitAccession="UO:0000017" unitName="micrometer"/>
{/origin y}</scanSettings>
</scanSettingsList>
<instrumentConfigurationList count="1">
<instrumentConfiguration id="IC1">
<cvParam cvRef="MS" accession="MS:1000031" name="instrument model" value=""/>
</instrumentConfiguration>
</instrumentConfigurationList>
<dataProcessingList count="1">
<dataProcessing id="ImzKeyProcessing">
<processingMethod order="1" softwareRef="ImzKey">
<cvParam cvRef="MS" accession="MS:1000544" name="Conversion to mzML" value=""/>
</processingMethod>
</dataProcessing>
</dataProcessingList>
<run defaultInstrumentConfigurationRef="IC1" id="Experiment{run_id}">
<spectrumList count="{num_spectra}" defaultDataProcessingRef="ImzKeyProcessing">
`

const spectrumTemplate = `<spectrum defaultArrayLength="0" id="spectrum={index}" index="{index}">
<referenceableParamGroupRef ref="spectrum"/>
{#tic}<cvParam cvRef="MS" accession="MS:1000285" name="total ion current" value="{tic}"/>
{/tic}<scanList count="1">
<cvParam cvRef="MS" accession="MS:1000795" name="no combination" value=""/>
<scan instrumentConfigurationRef="IC1">
<cvParam cvRef="IMS" accession="IMS:1000050" name="position x" value="{x}"/>
<cvParam cvRef="IMS" accession="IMS:1000051" name="position y" value="{y}"/>
{#z}<cvParam cvRef="IMS" accession="IMS:1000052" name="position z" value="{z}"/>
{/z}</scan>
</scanList>
<binaryDataArrayList count="2">
<binaryDataArray encodedLength="0">
<referenceableParamGroupRef ref="mzArray"/>
<cvParam cvRef="IMS" accession="IMS:1000103" name="external array length" value="{mz_len}"/>
<cvParam cvRef="IMS" accession="IMS:1000104" name="external encoded length" value="{mz_enc_len}"/>
<cvParam cvRef="IMS" accession="IMS:1000102" name="external offset" value="{mz_offset}"/>
<binary/>
</binaryDataArray>
<binaryDataArray encodedLength="0">
<referenceableParamGroupRef ref="intensityArray"/>
<cvParam cvRef="IMS" accession="IMS:1000103" name="external array length" value="{int_len}"/>
<cvParam cvRef="IMS" accession="IMS:1000104" name="external encoded length" value="{int_enc_len}"/>
<cvParam cvRef="IMS" accession="IMS:1000102" name="external offset" value="{int_offset}"/>
<binary/>
</binaryDataArray>
</binaryDataArrayList>
</spectrum>
`

const footerTemplate = `</spectrumList>
</run>
</mzML>
`
