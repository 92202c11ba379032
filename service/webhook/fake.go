package webhook

import "github.com/khaledhikmat/nsfw-go/service/config"

type fakeService struct {
	CfgSvc   config.IService
	Payloads []map[string]interface{}
}

func NewFake(cfgsvc config.IService) IService {
	return &fakeService{
		CfgSvc: cfgsvc,
	}
}

func (svc *fakeService) Post(payload map[string]interface{}) error {
	svc.Payloads = append(svc.Payloads, payload)
	return nil
}
