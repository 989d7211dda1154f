package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

type GatewayConfig struct {
	UrlTemplate string `yaml:"url_template"`
}

type GatewaysConfig struct {
	Gateways []GatewayConfig `yaml:"gateways"`
}

// defaultGatewayTemplates mirror the public gateways the read path falls
// back across when no gateways file is present.
var defaultGatewayTemplates = []string{
	"https://gateway.pinata.cloud/ipfs/%s",
	"https://cloudflare-ipfs.com/ipfs/%s",
	"https://ipfs.io/ipfs/%s",
}

// LoadGatewayTemplates returns the ordered list of gateway URL templates
// used by the content read path. A missing file falls back to the built-in
// public gateway list.
func LoadGatewayTemplates(gatewaysFile string) ([]string, error) {
	var gatewaysPath string
	if filepath.IsAbs(gatewaysFile) {
		gatewaysPath = gatewaysFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		gatewaysPath = filepath.Join(wd, gatewaysFile)
	}

	data, err := os.ReadFile(gatewaysPath)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultGatewayTemplates, nil
		}
		return nil, fmt.Errorf("unable to read %s: %w", gatewaysFile, err)
	}

	var config GatewaysConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", gatewaysFile, err)
	}

	if len(config.Gateways) == 0 {
		return nil, fmt.Errorf("%s defines no gateways", gatewaysFile)
	}

	templates := make([]string, len(config.Gateways))
	for i, gateway := range config.Gateways {
		if gateway.UrlTemplate == "" {
			return nil, fmt.Errorf("gateway at index %d missing url_template", i)
		}
		if !strings.Contains(gateway.UrlTemplate, "%s") {
			return nil, fmt.Errorf("gateway at index %d has no %%s placeholder: %s", i, gateway.UrlTemplate)
		}
		templates[i] = gateway.UrlTemplate
	}

	return templates, nil
}
