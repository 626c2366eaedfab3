package model

import "strings"

// IntegrationInfo holds the operator-configured parts of the discovery descriptor.
type IntegrationInfo struct {
	AppName           string
	AppDescription    string
	AppLogo           string
	BackgroundColor   string
	Author            string
	Category          string
	KeyFeatures       []string
	CreatedAt         string
	UpdatedAt         string
	DefaultWebhookURL string
}

type Integration struct {
	Data IntegrationData `json:"data"`
}

type IntegrationData struct {
	Date                IntegrationDate         `json:"date"`
	Descriptions        IntegrationDescriptions `json:"descriptions"`
	IsActive            bool                    `json:"is_active"`
	IntegrationType     string                  `json:"integration_type"`
	KeyFeatures         []string                `json:"key_features"`
	IntegrationCategory string                  `json:"integration_category"`
	Author              string                  `json:"author"`
	Website             string                  `json:"website"`
	Settings            []Setting               `json:"settings"`
	TargetURL           string                  `json:"target_url"`
}

type IntegrationDate struct {
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type IntegrationDescriptions struct {
	AppName         string `json:"app_name"`
	AppDescription  string `json:"app_description"`
	AppLogo         string `json:"app_logo"`
	AppURL          string `json:"app_url"`
	BackgroundColor string `json:"background_color"`
}

// NewIntegration builds the descriptor for a service reachable at baseURL.
func NewIntegration(info IntegrationInfo, baseURL string) Integration {
	baseURL = strings.TrimRight(baseURL, "/")
	features := append([]string(nil), info.KeyFeatures...)
	if features == nil {
		features = []string{}
	}
	return Integration{Data: IntegrationData{
		Date: IntegrationDate{
			CreatedAt: info.CreatedAt,
			UpdatedAt: info.UpdatedAt,
		},
		Descriptions: IntegrationDescriptions{
			AppName:         info.AppName,
			AppDescription:  info.AppDescription,
			AppLogo:         info.AppLogo,
			AppURL:          baseURL,
			BackgroundColor: info.BackgroundColor,
		},
		IsActive:            true,
		IntegrationType:     "output",
		KeyFeatures:         features,
		IntegrationCategory: info.Category,
		Author:              info.Author,
		Website:             baseURL,
		Settings: []Setting{{
			Label:    WebhookSettingLabel,
			Type:     "text",
			Required: true,
			Default:  info.DefaultWebhookURL,
		}},
		TargetURL: baseURL + "/notify",
	}}
}
