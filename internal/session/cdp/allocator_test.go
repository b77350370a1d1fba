package cdp

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func flagValue(flags []Flag, name string) (interface{}, bool) {
	var (
		v     interface{}
		found bool
	)
	// Later flags win, as they do when chromedp applies them.
	for _, f := range flags {
		if f.Name == name {
			v, found = f.Value, true
		}
	}
	return v, found
}

func TestFlags(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		flags := Flags(Options{Headless: true})

		v, ok := flagValue(flags, "enable-automation")
		assert.True(t, ok)
		assert.Equal(t, false, v)

		v, _ = flagValue(flags, "disable-blink-features")
		assert.Equal(t, "AutomationControlled", v)

		v, _ = flagValue(flags, "headless")
		assert.Equal(t, true, v)

		_, ok = flagValue(flags, "ignore-certificate-errors")
		assert.False(t, ok)
	})

	t.Run("HeadlessDisabled", func(t *testing.T) {
		v, _ := flagValue(Flags(Options{Headless: false}), "headless")
		assert.Equal(t, false, v)
	})

	t.Run("IgnoreTLSErrors", func(t *testing.T) {
		flags := Flags(Options{IgnoreTLSErrors: true})
		v, _ := flagValue(flags, "ignore-certificate-errors")
		assert.Equal(t, true, v)
		v, _ = flagValue(flags, "allow-insecure-localhost")
		assert.Equal(t, true, v)
	})

	t.Run("WithCustomArgs", func(t *testing.T) {
		flags := Flags(Options{Args: []string{"--custom-arg1", "--lang=de-DE", "--", " "}})
		v, _ := flagValue(flags, "custom-arg1")
		assert.Equal(t, true, v)
		v, _ = flagValue(flags, "lang")
		assert.Equal(t, "de-DE", v)
		_, ok := flagValue(flags, "")
		assert.False(t, ok)
	})

	t.Run("CustomArgsOverrideDefaults", func(t *testing.T) {
		v, _ := flagValue(Flags(Options{Headless: true, Args: []string{"--headless=new"}}), "headless")
		assert.Equal(t, "new", v)
	})

	t.Run("WithWindowSize", func(t *testing.T) {
		v, _ := flagValue(Flags(Options{WindowWidth: 1920, WindowHeight: 1080}), "window-size")
		assert.Equal(t, "1920,1080", v)

		_, ok := flagValue(Flags(Options{WindowWidth: 1920}), "window-size")
		assert.False(t, ok)
	})

	t.Run("LinuxSandbox", func(t *testing.T) {
		_, ok := flagValue(Flags(Options{}), "no-sandbox")
		assert.Equal(t, runtime.GOOS == "linux", ok)
	})
}

func TestAllocatorOptionsExtendDefaults(t *testing.T) {
	opts := allocatorOptions(Options{ExecPath: "/opt/chrome/chrome"})
	// defaults + one per flag + user agent + exec path
	assert.Greater(t, len(opts), len(Flags(Options{}))+2)
}
