package core

import "strings"

// PSI-MS and imaging MS controlled vocabulary accessions read and written by
// the imzML reader and writer.
const (
	AccMZArray         = "MS:1000514"
	AccIntensityArray  = "MS:1000515"
	AccZlib            = "MS:1000574"
	AccNoCompression   = "MS:1000576"
	AccCentroid        = "MS:1000127"
	AccProfile         = "MS:1000128"
	AccPositiveScan    = "MS:1000130"
	AccNegativeScan    = "MS:1000129"
	AccTotalIonCurrent = "MS:1000285"

	AccContinuous      = "IMS:1000030"
	AccProcessed       = "IMS:1000031"
	AccMaxCountX       = "IMS:1000042"
	AccMaxCountY       = "IMS:1000043"
	AccMaxDimensionX   = "IMS:1000044"
	AccMaxDimensionY   = "IMS:1000045"
	AccPixelSizeX      = "IMS:1000046"
	AccPixelSizeY      = "IMS:1000047"
	AccPositionX       = "IMS:1000050"
	AccPositionY       = "IMS:1000051"
	AccPositionZ       = "IMS:1000052"
	AccOriginX         = "IMS:1000053"
	AccOriginY         = "IMS:1000054"
	AccUUID            = "IMS:1000080"
	AccSHA1            = "IMS:1000091"
	AccExternalData    = "IMS:1000101"
	AccExternalOffset  = "IMS:1000102"
	AccExternalLength  = "IMS:1000103"
	AccExternalEncoded = "IMS:1000104"
)

// NumericTypeByAccession resolves MS:1000521, MS:1000523, MS:1000519 and
// MS:1000522.
func NumericTypeByAccession(acc string) (NumericType, bool) {
	for _, t := range []NumericType{Float32, Float64, Int32, Int64} {
		if t.Accession() == acc {
			return t, true
		}
	}
	return 0, false
}

// AccessionCode returns the numeric part of an accession, "1000521" for
// "MS:1000521".
func AccessionCode(acc string) string {
	if i := strings.IndexByte(acc, ':'); i >= 0 {
		return acc[i+1:]
	}
	return acc
}
