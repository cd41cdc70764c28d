// cmd/widgetlint checks raw widget config files before they are stored.
//
//	widgetlint [-type farebook] [-print] config.yaml [other.json ...]
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"time"

	"bookingtms/internal/widgetconfig"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func main() {
	widgetType := flag.String("type", "farebook", "widget type used when printing the public config")
	printConfig := flag.Bool("print", false, "print the normalized public config of valid files")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: widgetlint [-type farebook] [-print] <config file>...")
		os.Exit(2)
	}

	failed := 0
	for _, path := range flag.Args() {
		if !lintFile(path, *widgetType, *printConfig) {
			failed++
		}
	}

	if failed > 0 {
		fmt.Printf("\n❌ %d of %d config files are invalid\n", failed, flag.NArg())
		os.Exit(1)
	}
	fmt.Printf("\n✅ %d config files are valid\n", flag.NArg())
}

func lintFile(path, widgetType string, printConfig bool) bool {
	raw, err := loadRawConfig(path)
	if err != nil {
		fmt.Printf("%s: %v\n", path, err)
		return false
	}

	cfg, err := widgetconfig.Normalize(raw)
	if err != nil {
		var verr *widgetconfig.ValidationError
		if !errors.As(err, &verr) {
			fmt.Printf("%s: %v\n", path, err)
			return false
		}
		fmt.Printf("%s: %d problems\n", path, len(verr.Errors))
		for _, fe := range verr.Errors {
			fmt.Printf("  - %s: %s\n", fe.Field, fe.Message)
		}
		return false
	}

	fmt.Printf("%s: ok (%s, fingerprint %s)\n", path, cfg.Location, raw.Fingerprint())
	if printConfig {
		out, err := json.MarshalIndent(cfg.Public(widgetType), "", "  ")
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			return false
		}
		fmt.Println(string(out))
	}
	return true
}

// dateAsString turns YAML timestamps such as an unquoted 2030-06-03 back into YYYY-MM-DD
func dateAsString(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	if t, ok := data.(time.Time); ok {
		return t.Format("2006-01-02"), nil
	}
	return data, nil
}

// loadRawConfig reads a YAML, JSON or TOML file. Field names match case-insensitively.
func loadRawConfig(path string) (widgetconfig.RawConfig, error) {
	var raw widgetconfig.RawConfig

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return raw, fmt.Errorf("failed to read config: %w", err)
	}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		dateAsString,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&raw, hook); err != nil {
		return raw, fmt.Errorf("failed to decode config: %w", err)
	}
	return raw, nil
}
