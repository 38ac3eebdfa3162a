package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// fileConfig holds defaults read from --config. Zero values are unset.
type fileConfig struct {
	ModelDir    string  `toml:"model_dir"`
	IRTModelDir string  `toml:"irt_model_dir"`
	OrtLib      string  `toml:"ort_lib"`
	Mods        string  `toml:"mods"`
	Threads     int     `toml:"threads"`
	Tolerance   float64 `toml:"tolerance"`
	TopN        int     `toml:"top_n"`
	Cutoff      float64 `toml:"cutoff"`
}

// flagValues maps flag names to the values set in the file
func (c fileConfig) flagValues() map[string]string {
	vals := map[string]string{}
	set := func(name, v string) {
		if v != "" {
			vals[name] = v
		}
	}
	set("model-dir", c.ModelDir)
	set("irt-model-dir", c.IRTModelDir)
	set("ort-lib", c.OrtLib)
	set("mods", c.Mods)
	if c.Threads > 0 {
		set("threads", strconv.Itoa(c.Threads))
	}
	if c.Tolerance > 0 {
		set("tolerance", strconv.FormatFloat(c.Tolerance, 'f', -1, 64))
	}
	if c.TopN > 0 {
		set("top-n", strconv.Itoa(c.TopN))
	}
	if c.Cutoff > 0 {
		set("cutoff", strconv.FormatFloat(c.Cutoff, 'f', -1, 64))
	}
	return vals
}

// loadFileConfig decodes a TOML defaults file. Unknown keys are an error.
func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// applyConfigFile fills flags the user did not set from --config
func applyConfigFile(c *cobra.Command, _ []string) error {
	if configFile == "" {
		return nil
	}
	cfg, err := loadFileConfig(configFile)
	if err != nil {
		return err
	}
	for name, v := range cfg.flagValues() {
		f := c.Flags().Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		if err := c.Flags().Set(name, v); err != nil {
			return fmt.Errorf("config %s: %s: %w", configFile, name, err)
		}
	}
	return nil
}
