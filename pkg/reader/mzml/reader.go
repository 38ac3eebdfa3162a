package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"golang.org/x/net/html/charset"

	"github.com/ChrisMcGann/PrositGo/pkg/core"
)

// Read reads mzML file from an io.Reader
func Read(reader io.Reader) (*MzML, error) {
	mzML := &MzML{}

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel

	// Skip over indexedmzML and everything else outside mzML
	for {
		t, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if start, ok := t.(xml.StartElement); ok && start.Name.Local == "mzML" {
			if err := d.DecodeElement(&mzML.content, &start); err != nil {
				return nil, err
			}
		}
	}

	if err := mzML.traverseScan(); err != nil {
		return nil, err
	}
	return mzML, nil
}

// ReadFile opens and reads an mzML file
func ReadFile(path string) (*MzML, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	m, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

// binaryDataPars decodes the CV terms in a mzML binarydata section
//
// CV Terms for binary data compression
// MS:1000574 zlib compression
// MS:1000576 No Compression
// MS:1002312 - MS:1002314, MS:1002746 - MS:1002748 MS-Numpress variants
//
// CV Terms for binary data array types
// MS:1000514 m/z array
// MS:1000515 intensity array
//
// CV Terms for binary-data-type
// MS:1000521 32-bit float
// MS:1000523 64-bit float
func binaryDataPars(binaryDataArray *binaryDataArray) (zlibCompression, bits64, mzArray, intensityArray bool, err error) {
	for _, cvParam := range binaryDataArray.CvPar {
		switch cvParam.Accession {
		case `MS:1000574`:
			zlibCompression = true
		case `MS:1000514`:
			mzArray = true
		case `MS:1000515`:
			intensityArray = true
		case `MS:1000523`:
			bits64 = true
		case `MS:1002312`, `MS:1002313`, `MS:1002314`,
			`MS:1002746`, `MS:1002747`, `MS:1002748`:
			return false, false, false, false,
				fmt.Errorf("%w (CV term %s)", ErrUnsupportedCompression, cvParam.Accession)
		}
	}
	return zlibCompression, bits64, mzArray, intensityArray, nil
}

func fillScan(p []Peak, binaryDataArray *binaryDataArray) ([]Peak, error) {
	zlibCompression, bits64, mzArray, intensityArray, err := binaryDataPars(binaryDataArray)
	if err != nil {
		return nil, err
	}
	// Only m/z and intensity arrays are used
	if !mzArray && !intensityArray {
		return p, nil
	}
	data, err := base64.StdEncoding.DecodeString(binaryDataArray.Binary)
	if err != nil {
		return nil, err
	}
	if zlibCompression {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer z.Close()
		if data, err = io.ReadAll(z); err != nil {
			return nil, err
		}
	}

	width := 4
	if bits64 {
		width = 8
	}
	cnt := len(data) / width
	if cnt > len(p) {
		// defaultArrayLength was too small
		p = append(p, make([]Peak, cnt-len(p))...)
	}
	for i := 0; i < cnt; i++ {
		var v float64
		if bits64 {
			v = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		} else {
			v = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
		if mzArray {
			p[i].Mz = v
		} else {
			p[i].Intens = v
		}
	}
	return p, nil
}

// NumSpecs returns the number of spectra
func (f *MzML) NumSpecs() int {
	return len(f.content.Run.SpectrumList.Spectrum)
}

func (f *MzML) checkIndex(scanIndex int) error {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return ErrInvalidScanIndex
	}
	return nil
}

// RetentionTime returns the retention time of a spectrum in seconds,
// or -1 if not present
func (f *MzML) RetentionTime(scanIndex int) (float64, error) {
	if err := f.checkIndex(scanIndex); err != nil {
		return 0.0, err
	}
	for _, scan := range f.content.Run.SpectrumList.Spectrum[scanIndex].ScanList.Scan {
		for _, cvParam := range scan.CvPar {
			if cvParam.Accession == "MS:1000016" {
				retentionTime, err := strconv.ParseFloat(cvParam.Value, 64)
				// Minutes are converted, anything else is assumed to be seconds
				if cvParam.UnitAccession == "UO:0000031" ||
					cvParam.UnitAccession == "MS:1000038" {
					retentionTime *= 60
				}
				return retentionTime, err
			}
		}
	}
	return -1.0, nil
}

// ReadScan reads a single scan
// scanIndex is the 0-based position of the scan in the mzML file,
// which is not necessarily the scan number in its id.
func (f *MzML) ReadScan(scanIndex int) ([]Peak, error) {
	if err := f.checkIndex(scanIndex); err != nil {
		return nil, err
	}
	s := &f.content.Run.SpectrumList.Spectrum[scanIndex]
	p := make([]Peak, s.DefaultArrayLength)
	var err error
	for i := range s.BinaryDataArrayList.BinaryDataArray {
		p, err = fillScan(p, &s.BinaryDataArrayList.BinaryDataArray[i])
		if err != nil {
			return nil, fmt.Errorf("scan %d: %w", scanIndex, err)
		}
	}
	return p, nil
}

// Centroid returns true if the spectrum contains centroid peaks
func (f *MzML) Centroid(scanIndex int) (bool, error) {
	if err := f.checkIndex(scanIndex); err != nil {
		return false, err
	}
	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000127" { // centroid spectrum
			return true, nil
		}
	}
	return false, nil
}

// MSLevel returns the MS level of a scan
func (f *MzML) MSLevel(scanIndex int) (int, error) {
	if err := f.checkIndex(scanIndex); err != nil {
		return 0, err
	}
	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000511" { // ms level
			msLevel, err := strconv.ParseInt(cvParam.Value, 10, 64)
			return int(msLevel), err
		}
	}
	return 1, nil // If nothing else, guess it's MS1
}

// Precursor holds the selected ion and activation of an MS2 scan. Zero
// values mean the term was absent.
type Precursor struct {
	MZ              float64
	Charge          int
	CollisionEnergy float64
}

// Precursor returns the first selected ion of a scan
func (f *MzML) Precursor(scanIndex int) (Precursor, error) {
	var pre Precursor
	if err := f.checkIndex(scanIndex); err != nil {
		return pre, err
	}
	lists := f.content.Run.SpectrumList.Spectrum[scanIndex].PrecursorList
	if len(lists) == 0 || len(lists[0].Precursor) == 0 {
		return pre, nil
	}
	p := lists[0].Precursor[0]
	var err error
	for _, cvParam := range p.Activation.CvPar {
		if cvParam.Accession == "MS:1000045" { // collision energy
			if pre.CollisionEnergy, err = strconv.ParseFloat(cvParam.Value, 64); err != nil {
				return pre, fmt.Errorf("collision energy: %w", err)
			}
		}
	}
	if len(p.SelectedIonList.SelectedIon) == 0 {
		return pre, nil
	}
	for _, cvParam := range p.SelectedIonList.SelectedIon[0].CvPar {
		switch cvParam.Accession {
		case "MS:1000744": // selected ion m/z
			if pre.MZ, err = strconv.ParseFloat(cvParam.Value, 64); err != nil {
				return pre, fmt.Errorf("selected ion m/z: %w", err)
			}
		case "MS:1000041": // charge state
			if pre.Charge, err = strconv.Atoi(cvParam.Value); err != nil {
				return pre, fmt.Errorf("charge state: %w", err)
			}
		}
	}
	return pre, nil
}

// traverseScan fills f.index2id and f.id2Index to make scans accessible
func (f *MzML) traverseScan() error {
	f.index2id = make([]string, f.NumSpecs())
	f.id2Index = make(map[string]int, f.NumSpecs())
	for i, s := range f.content.Run.SpectrumList.Spectrum {
		if i != s.Index {
			return ErrInvalidScanIndex
		}
		f.index2id[i] = s.ID
		f.id2Index[s.ID] = i
	}
	return nil
}

// ScanIndex converts a scan identifier (the string used in the mzML file)
// into an index that is used to access the scans
func (f *MzML) ScanIndex(scanID string) (int, error) {
	if index, ok := f.id2Index[scanID]; ok {
		return index, nil
	}
	return 0, ErrInvalidScanID
}

// ScanID converts a scan index (used to access the scan data) into a scan id
// (used in the mzML file)
func (f *MzML) ScanID(scanIndex int) (string, error) {
	if err := f.checkIndex(scanIndex); err != nil {
		return "", err
	}
	return f.index2id[scanIndex], nil
}

// Spectrum returns the observed spectrum with the given 1-based scan number.
// Scan number n is the n-th spectrum of the file.
func (f *MzML) Spectrum(scanNumber int) (*core.Spectrum, error) {
	scanIndex := scanNumber - 1
	peaks, err := f.ReadScan(scanIndex)
	if err != nil {
		return nil, fmt.Errorf("scan number %d: %w", scanNumber, err)
	}
	spec := &core.Spectrum{
		ScanNumber:   scanNumber,
		SourceFormat: "mzml",
		Peaks:        make([]core.Peak, len(peaks)),
	}
	for i, p := range peaks {
		spec.Peaks[i] = core.Peak{MZ: p.Mz, Intensity: p.Intens}
	}

	rt, err := f.RetentionTime(scanIndex)
	if err != nil {
		return nil, fmt.Errorf("scan number %d: retention time: %w", scanNumber, err)
	}
	if rt >= 0 {
		spec.RetentionTime = &rt
	}

	pre, err := f.Precursor(scanIndex)
	if err != nil {
		return nil, fmt.Errorf("scan number %d: %w", scanNumber, err)
	}
	spec.PrecursorMZ = pre.MZ
	spec.Charge = pre.Charge
	if pre.CollisionEnergy > 0 {
		ce := pre.CollisionEnergy
		spec.CollisionEnergy = &ce
	}
	return spec, nil
}
