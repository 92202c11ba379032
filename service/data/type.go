package data

import "github.com/khaledhikmat/nsfw-go/model"

type IService interface {
	RetrieveScans() ([]model.ScanRecord, error)
	RetrieveScanByPath(path string) (model.ScanRecord, bool, error)
	SaveScan(rec model.ScanRecord) error

	NewError(err interface{}) error
}
