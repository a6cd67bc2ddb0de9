package sign

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"strings"
)

// KeyConfig names where signing keys come from. Path and env are exclusive per key.
type KeyConfig struct {
	PrivateKeyPath string
	PublicKeyPath  string
	PrivateKeyEnv  string
	PublicKeyEnv   string
}

func (cfg KeyConfig) HasPrivateSource() bool {
	return cfg.PrivateKeyPath != "" || cfg.PrivateKeyEnv != ""
}

func (cfg KeyConfig) hasPublicSource() bool {
	return cfg.PublicKeyPath != "" || cfg.PublicKeyEnv != ""
}

func LoadSigningKey(cfg KeyConfig) (KeyPair, error) {
	if !cfg.HasPrivateSource() {
		return KeyPair{}, fmt.Errorf("private key not configured")
	}
	priv, err := loadPrivateKey(cfg)
	if err != nil {
		return KeyPair{}, err
	}
	pub := priv.Public().(ed25519.PublicKey)
	if cfg.hasPublicSource() {
		loaded, err := loadPublicKey(cfg)
		if err != nil {
			return KeyPair{}, err
		}
		if !loaded.Equal(pub) {
			return KeyPair{}, fmt.Errorf("public key does not match private key")
		}
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

func LoadVerifyKey(cfg KeyConfig) (ed25519.PublicKey, error) {
	if cfg.hasPublicSource() {
		return loadPublicKey(cfg)
	}
	if cfg.HasPrivateSource() {
		priv, err := loadPrivateKey(cfg)
		if err != nil {
			return nil, err
		}
		return priv.Public().(ed25519.PublicKey), nil
	}
	return nil, fmt.Errorf("public key not configured")
}

func loadPrivateKey(cfg KeyConfig) (ed25519.PrivateKey, error) {
	if cfg.PrivateKeyPath != "" && cfg.PrivateKeyEnv != "" {
		return nil, fmt.Errorf("private key source: set either path or env")
	}
	if cfg.PrivateKeyPath != "" {
		return LoadPrivateKeyBase64(cfg.PrivateKeyPath)
	}
	encoded, ok := readEnvValue(cfg.PrivateKeyEnv)
	if !ok {
		return nil, fmt.Errorf("private key env not set: %s", cfg.PrivateKeyEnv)
	}
	return ParsePrivateKeyBase64(encoded)
}

func loadPublicKey(cfg KeyConfig) (ed25519.PublicKey, error) {
	if cfg.PublicKeyPath != "" && cfg.PublicKeyEnv != "" {
		return nil, fmt.Errorf("public key source: set either path or env")
	}
	if cfg.PublicKeyPath != "" {
		return LoadPublicKeyBase64(cfg.PublicKeyPath)
	}
	encoded, ok := readEnvValue(cfg.PublicKeyEnv)
	if !ok {
		return nil, fmt.Errorf("public key env not set: %s", cfg.PublicKeyEnv)
	}
	return ParsePublicKeyBase64(encoded)
}

func readEnvValue(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false
	}
	return val, true
}
