package data

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/khaledhikmat/nsfw-go/model"
	"github.com/khaledhikmat/nsfw-go/service/config"
	"github.com/khaledhikmat/nsfw-go/service/lgr"
)

type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
}

func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesDBService) RetrieveScans() ([]model.ScanRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.load()
}

func (svc *filesDBService) RetrieveScanByPath(path string) (model.ScanRecord, bool, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	scans, err := svc.load()
	if err != nil {
		return model.ScanRecord{}, false, err
	}

	for _, rec := range scans {
		if rec.Path == path {
			return rec, true, nil
		}
	}

	return model.ScanRecord{}, false, nil
}

func (svc *filesDBService) SaveScan(rec model.ScanRecord) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	scans, err := svc.load()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range scans {
		if existing.Path == rec.Path {
			scans[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		scans = append(scans, rec)
	}

	data, err := json.Marshal(scans)
	if err != nil {
		return err
	}

	output := svc.CfgSvc.GetScansFile()
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}

	// Write the JSON data to the file (with truncation)
	return os.WriteFile(output, data, 0644)
}

func (svc *filesDBService) NewError(err interface{}) error {
	lgr.Logger.Error(
		"pipeline error",
		slog.Any("error", err),
		slog.Int64("timestamp", time.Now().Unix()),
	)
	return nil
}

func (svc *filesDBService) load() ([]model.ScanRecord, error) {
	scans := []model.ScanRecord{}

	input := svc.CfgSvc.GetScansFile()
	data, err := os.ReadFile(input)
	if err != nil {
		if os.IsNotExist(err) {
			return scans, nil
		}
		return scans, err
	}

	err = json.Unmarshal(data, &scans)
	if err != nil {
		return scans, err
	}

	return scans, nil
}
