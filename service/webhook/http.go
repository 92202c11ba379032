package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/nsfw-go/service/config"
)

const postTimeout = 10 * time.Second

type httpService struct {
	CfgSvc config.IService
	Client *http.Client
}

// NewHTTP posts alert payloads as JSON to the configured webhook URL.
func NewHTTP(cfgsvc config.IService) IService {
	return &httpService{
		CfgSvc: cfgsvc,
		Client: &http.Client{
			Timeout: postTimeout,
		},
	}
}

func (svc *httpService) Post(payload map[string]interface{}) error {
	url := svc.CfgSvc.GetWebhookURL()
	if url == "" {
		return xerrors.New("no webhook URL configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := svc.Client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return xerrors.New("webhook returned " + resp.Status)
	}

	return nil
}
