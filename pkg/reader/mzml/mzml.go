// Package mzml reads observed spectra from mzML files.
package mzml

import (
	"encoding/xml"
	"errors"
)

// MzML wraps the spectrum list of an mzML file
type MzML struct {
	content  mzMLContent
	index2id []string
	id2Index map[string]int
}

// Peak contains the actual ms peak info
type Peak struct {
	Mz     float64
	Intens float64
}

// Only the run is decoded; everything outside it is skipped.
type mzMLContent struct {
	XMLName xml.Name `xml:"http://psi.hupo.org/ms/mzml mzML"`
	Run     run      `xml:"run"`
}

type run struct {
	ID           string       `xml:"id,attr,omitempty"`
	SpectrumList spectrumList `xml:"spectrumList,omitempty"`
}

type spectrumList struct {
	Count    int        `xml:"count,attr,omitempty"`
	Spectrum []spectrum `xml:"spectrum,omitempty"`
}

type spectrum struct {
	Index               int                 `xml:"index,attr"`
	ID                  string              `xml:"id,attr"`
	DefaultArrayLength  int64               `xml:"defaultArrayLength,attr"`
	CvPar               []CVParam           `xml:"cvParam,omitempty"`
	ScanList            scanList            `xml:"scanList"`
	PrecursorList       []precursorList     `xml:"precursorList,omitempty"`
	BinaryDataArrayList binaryDataArrayList `xml:"binaryDataArrayList"`
}

type binaryDataArrayList struct {
	Count           int               `xml:"count,attr,omitempty"`
	BinaryDataArray []binaryDataArray `xml:"binaryDataArray"`
}

type binaryDataArray struct {
	EncodedLength int       `xml:"encodedLength,attr,omitempty"`
	CvPar         []CVParam `xml:"cvParam,omitempty"`
	Binary        string    `xml:"binary"`
}

type scanList struct {
	Count int    `xml:"count,attr,omitempty"`
	Scan  []scan `xml:"scan"`
}

type scan struct {
	CvPar []CVParam `xml:"cvParam,omitempty"`
}

type precursorList struct {
	Count     int         `xml:"count,attr,omitempty"`
	Precursor []precursor `xml:"precursor"`
}

type precursor struct {
	SpectrumRef     string          `xml:"spectrumRef,attr,omitempty"`
	SelectedIonList selectedIonList `xml:"selectedIonList"`
	Activation      activation      `xml:"activation"`
}

type selectedIonList struct {
	Count       int           `xml:"count,attr,omitempty"`
	SelectedIon []selectedIon `xml:"selectedIon"`
}

type selectedIon struct {
	CvPar []CVParam `xml:"cvParam,omitempty"`
}

type activation struct {
	CvPar []CVParam `xml:"cvParam,omitempty"`
}

// CVParam contains values and attributes of a mzML Controlled Vocabulary term
// (http://www.peptideatlas.org/tmp/mzML1.1.0.html)
type CVParam struct {
	Accession     string `xml:"accession,attr,omitempty"`
	Name          string `xml:"name,attr,omitempty"`
	Value         string `xml:"value,attr,omitempty"`
	UnitAccession string `xml:"unitAccession,attr,omitempty"`
}

var (
	// ErrInvalidScanID means an invalid scan id is supplied
	ErrInvalidScanID = errors.New("MzML: invalid scan id")
	// ErrInvalidScanIndex means an invalid scan index is supplied
	ErrInvalidScanIndex = errors.New("MzML: invalid scan index")
	// ErrUnsupportedCompression means the binary data uses MS-Numpress
	ErrUnsupportedCompression = errors.New("MzML: unsupported compression")
)
