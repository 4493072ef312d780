package capsnet

import "testing"

func TestDefaultConfig(t *testing.T) {
	conf := DefaultConf(28, 28, 10)
	if !conf.IsValid() {
		t.Errorf("Expected Default Config to be correct")
	}

	// 28 -> 20 under the stem, 20 -> 6 under the stride-2 reduction
	h, w := conf.gridDims()
	if h != 6 || w != 6 {
		t.Errorf("Expected a 6×6 grid. Got %d×%d instead", h, w)
	}
	if n := conf.NumPrimary(); n != 1152 {
		t.Errorf("Expected 6·6·32 = 1152 primary capsules. Got %d instead", n)
	}
}

func TestConfigValidity(t *testing.T) {
	bad := []struct {
		name string
		mod  func(*Config)
	}{
		{"no classes", func(c *Config) { c.Classes = 1 }},
		{"no rounds", func(c *Config) { c.Rounds = 0 }},
		{"no types", func(c *Config) { c.PrimaryTypes = 0 }},
		{"no pose", func(c *Config) { c.PrimaryDim = 0 }},
		{"margins crossed", func(c *Config) { c.PosMargin, c.NegMargin = 0.1, 0.9 }},
		{"negative margin", func(c *Config) { c.NegMargin = -0.1 }},
		{"zero lambda", func(c *Config) { c.Lambda = 0 }},
		{"no batch", func(c *Config) { c.BatchSize = 0 }},
		{"no image", func(c *Config) { c.Width = 0 }},
	}
	for _, b := range bad {
		conf := DefaultConf(28, 28, 10)
		b.mod(&conf)
		if conf.IsValid() {
			t.Errorf("%q: expected the config to be invalid", b.name)
		}
	}
}

func TestInitRejectsVanishingGrid(t *testing.T) {
	// a 9×9 kernel cannot slide over a 12×12 input twice
	conf := DefaultConf(12, 12, 10)
	n := New(conf)
	if err := n.Init(); err == nil {
		t.Fatal("Expected Init to reject a config whose kernels eat the whole image")
	}
}
