package entity

// Теги, которые всегда выставляются на выходе при сохранении метаданных.
const (
	TagSeriesDescription = "0008|103e"
	TagWindowCenter      = "0028|1050"
	TagWindowWidth       = "0028|1051"

	TagStudyInstanceUID  = "0020|000d"
	TagSeriesInstanceUID = "0020|000e"
	TagSOPInstanceUID    = "0008|0018"
	TagModality          = "0008|0060"

	SeriesDescription = "Created with lungmask"
	WindowCenter      = "1"
	WindowWidth       = "2"
)

// dicomTagsToKeep теги пациента и исследования, которые переносятся в маску.
var dicomTagsToKeep = map[string]struct{}{
	"0010|0010": {}, // Patient Name
	"0010|0020": {}, // Patient ID
	"0010|0030": {}, // Patient Birth Date
	"0010|0040": {}, // Patient Sex
	"0010|1010": {}, // Patient Age
	"0010|1020": {}, // Patient Size
	"0010|1030": {}, // Patient Weight
	"0010|21b0": {}, // Additional Patient History
	"0020|000d": {}, // Study Instance UID
	"0020|0010": {}, // Study ID
	"0008|0020": {}, // Study Date
	"0008|0030": {}, // Study Time
	"0008|0050": {}, // Accession Number
	"0008|0060": {}, // Modality
	"0008|0080": {}, // Institution Name
	"0008|0090": {}, // Referring Physician Name
	"0008|1030": {}, // Study Description
	"0018|0015": {}, // Body Part Examined
	"0018|5100": {}, // Patient Position
	"0020|0011": {}, // Series Number
	"0020|0013": {}, // Instance Number
	"0028|1050": {}, // Window Center
	"0028|1051": {}, // Window Width
}

// IsTagToKeep сообщает, входит ли тег в список переносимых.
func IsTagToKeep(key string) bool {
	_, ok := dicomTagsToKeep[key]
	return ok
}

// DICOMTagsToKeep возвращает копию списка переносимых тегов.
func DICOMTagsToKeep() []string {
	keys := make([]string, 0, len(dicomTagsToKeep))
	for k := range dicomTagsToKeep {
		keys = append(keys, k)
	}
	return keys
}
