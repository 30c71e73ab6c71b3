package catalog

import (
	"bytes"
	_ "embed"
)

//go:embed fixtures/demo.yaml
var demoFixture []byte

// DemoStore returns a memory store seeded with the bundled demo catalog.
func DemoStore() (*MemoryStore, error) {
	fx, err := DecodeFixture(bytes.NewReader(demoFixture))
	if err != nil {
		return nil, err
	}
	return FromFixture(fx)
}
