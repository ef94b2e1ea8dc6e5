package transform

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/canlat/internal/testutil/testlog"
)

func TestDefaultRegistryListsSorted(t *testing.T) {
	testlog.Start(t)

	r, err := NewDefaultRegistry(DefaultKeys(), 8)
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	names := make([]string, 0)
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	want := []string{"aes-128", "aes-256", "identity", "md5", "sha1", "sha224", "sha256", "sha384", "sha512"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected registry listing: got=%v want=%v", names, want)
	}
	aes, ok := r.Resolve("aes-128")
	if !ok {
		t.Fatalf("expected aes-128")
	}
	if _, inv := aes.(Invertible); !inv {
		t.Fatalf("expected aes-128 invertible")
	}
}

func TestDefaultRegistryAddsRSAPerKey(t *testing.T) {
	key := testRSAKey(t)
	keys := DefaultKeys()
	keys.AddRSA(key)
	r, err := NewDefaultRegistry(keys, 8)
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	rsa, ok := r.Resolve("rsa-2048")
	if !ok || rsa.OutputLen() != 256 {
		t.Fatalf("expected rsa-2048 registered")
	}
	if _, ok := r.Resolve("rsa-4096"); ok {
		t.Fatalf("rsa-4096 registered without key material")
	}
}

func TestRegisterDuplicateAndNil(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Identity(8)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(Identity(8)); !errors.Is(err, ErrTransformExists) {
		t.Fatalf("expected ErrTransformExists, got %v", err)
	}
	if err := r.Register(nil); !errors.Is(err, ErrTransformNil) {
		t.Fatalf("expected ErrTransformNil, got %v", err)
	}
}

func TestValidateNameFailures(t *testing.T) {
	for _, name := range []string{"", "AES", "-aes", "aes-", "aes--128", "sha 256"} {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
	if err := ValidateName("rsa-2048"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
