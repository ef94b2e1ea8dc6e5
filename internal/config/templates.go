package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case RoleInitiator:
		return initiatorTemplate, nil
	case RoleResponder:
		return responderTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const initiatorTemplate = `role = "initiator"
name = "initiator"
scale = "us"
rounds = 100
warm_up = 1
report_path = "reports/initiator.yaml"
report_samples = false

[transport]
kind = "udp"
listen = "127.0.0.1:7100"
peer = "127.0.0.1:7101"
filter = true
retry_interval = "100ms"

[ids]
request = 0x100
reply = 0x101

[keys]
aes128 = "000102030405060708090a0b0c0d0e0f"
aes256 = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
rsa_files = ["keys/rsa-2048.pem", "keys/rsa-3072.pem", "keys/rsa-4096.pem"]

[admin]
addr = "127.0.0.1:9200"
token = ""
cors_origins = ["http://localhost:3000"]

[run]
reply_timeout = "5s"
send_timeout = "1s"
verify_reply = false
`

const responderTemplate = `role = "responder"
name = "responder"
rounds = 100
warm_up = 1

[transport]
kind = "udp"
listen = "127.0.0.1:7101"
peer = "127.0.0.1:7100"
filter = true
retry_interval = "100ms"

[ids]
request = 0x100
reply = 0x101

[keys]
aes128 = "000102030405060708090a0b0c0d0e0f"
aes256 = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
rsa_files = ["keys/rsa-2048.pub.pem", "keys/rsa-3072.pub.pem", "keys/rsa-4096.pub.pem"]

[admin]
addr = ""

[run]
request_timeout = "0s"
fragment_timeout = "1s"
`
