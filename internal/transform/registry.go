package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrTransformExists = errors.New("transform already exists")
	ErrTransformNil    = errors.New("transform is nil")
	ErrInvalidName     = errors.New("invalid transform name")
)

// Descriptor is the registry listing shape for one transform.
type Descriptor struct {
	Name       string
	Kind       Kind
	InputLen   int
	OutputLen  int
	Invertible bool
}

// Registry stores transforms by name.
type Registry struct {
	items map[string]Transform
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Transform)}
}

// NewDefaultRegistry registers identity, both AES ciphers, every digest and
// one RSA transform per key size present in keys. All take inLen bytes.
func NewDefaultRegistry(keys Keys, inLen int) (*Registry, error) {
	r := NewRegistry()
	if err := r.Register(Identity(inLen)); err != nil {
		return nil, err
	}
	for _, key := range [][]byte{keys.AES128, keys.AES256} {
		if len(key) == 0 {
			continue
		}
		t, err := NewAESECB(key, inLen)
		if err != nil {
			return nil, err
		}
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	for _, kind := range []Kind{DigestMD5, DigestSHA1, DigestSHA224, DigestSHA256, DigestSHA384, DigestSHA512} {
		t, err := NewDigest(kind, inLen)
		if err != nil {
			return nil, err
		}
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	for _, bits := range []int{2048, 3072, 4096} {
		priv := keys.RSA[bits]
		pub := keys.RSAPublic[bits]
		if priv == nil && pub == nil {
			continue
		}
		t, err := NewRSA(pub, priv, inLen)
		if err != nil {
			return nil, err
		}
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func ValidateName(name string) error {
	if !isValidName(strings.TrimSpace(name)) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (r *Registry) Register(t Transform) error {
	if t == nil {
		return ErrTransformNil
	}
	name := t.Name()
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, ok := r.items[name]; ok {
		return fmt.Errorf("%w: %s", ErrTransformExists, name)
	}
	r.items[name] = t
	return nil
}

func (r *Registry) Resolve(name string) (Transform, bool) {
	t, ok := r.items[strings.TrimSpace(name)]
	return t, ok
}

// List returns descriptors ordered by name.
func (r *Registry) List() []Descriptor {
	list := make([]Descriptor, 0, len(r.items))
	for _, t := range r.items {
		_, inv := t.(Invertible)
		list = append(list, Descriptor{
			Name:       t.Name(),
			Kind:       t.Kind(),
			InputLen:   t.InputLen(),
			OutputLen:  t.OutputLen(),
			Invertible: inv,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}

func isValidName(id string) bool {
	if id == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(id); i++ {
		c := id[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(id)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
