package keys

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// KeyType defines the sensitivity classification of a credential.
// The numeric order is a total order from least to most sensitive:
// Public < Anon < Restricted < Service < Admin < Secret.
type KeyType int

const (
	Public KeyType = iota
	Anon
	Restricted
	Service
	Admin
	Secret
)

var keyTypeNames = map[KeyType]string{
	Public:     "public",
	Anon:       "anon",
	Restricted: "restricted",
	Service:    "service",
	Admin:      "admin",
	Secret:     "secret",
}

func (k KeyType) String() string {
	if name, ok := keyTypeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("keytype(%d)", int(k))
}

// IsValid checks if the key type is one of the defined classifications
func (k KeyType) IsValid() bool {
	_, ok := keyTypeNames[k]
	return ok
}

// MoreSensitiveThan reports whether k is strictly more sensitive than other
func (k KeyType) MoreSensitiveThan(other KeyType) bool {
	return k > other
}

// ClientSafe reports whether this classification may be exposed to
// untrusted front-end code. Service, Admin and Secret never are.
func (k KeyType) ClientSafe() bool {
	switch k {
	case Public, Anon, Restricted:
		return true
	default:
		return false
	}
}

// ParseKeyType converts a classification name to its KeyType
func ParseKeyType(s string) (KeyType, error) {
	for kt, name := range keyTypeNames {
		if name == s {
			return kt, nil
		}
	}
	return Restricted, fmt.Errorf("unknown key type '%s'", s)
}

// MarshalJSON encodes a KeyType as its classification name
func (k KeyType) MarshalJSON() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("cannot marshal invalid key type %d", int(k))
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a KeyType from its classification name
func (k *KeyType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	kt, err := ParseKeyType(str)
	if err != nil {
		return err
	}
	*k = kt
	return nil
}

// UnmarshalYAML implements custom YAML unmarshaling for KeyType
func (k *KeyType) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	kt, err := ParseKeyType(str)
	if err != nil {
		return fmt.Errorf("invalid key type '%s': must be one of 'public', 'anon', 'restricted', 'service', 'admin', 'secret'", str)
	}
	*k = kt
	return nil
}
