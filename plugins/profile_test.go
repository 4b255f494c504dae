package plugins

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linht/rf-manager/at86"
)

func TestProfileDefaults(t *testing.T) {
	p, err := NewProfilePlugin(filepath.Join(t.TempDir(), "profile.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Profile(); got != DefaultProfile() {
		t.Errorf("profile = %+v, want defaults", got)
	}

	if _, err := NewProfilePlugin(""); err == nil {
		t.Error("empty path accepted")
	}
}

func TestProfileLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("channel: 40\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewProfilePlugin(path); err == nil {
		t.Error("channel 40 accepted")
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Profile)
		wantErr bool
	}{
		{"defaults", func(*Profile) {}, false},
		{"top channel", func(p *Profile) { p.Channel = 31 }, false},
		{"channel overflow", func(p *Profile) { p.Channel = 32 }, true},
		{"min power", func(p *Profile) { p.TxPowerDbm = -17 }, false},
		{"power too low", func(p *Profile) { p.TxPowerDbm = -18 }, true},
		{"power too high", func(p *Profile) { p.TxPowerDbm = 5 }, true},
		{"energy and carrier cca", func(p *Profile) { p.CCAMode = 3 }, false},
		{"cca mode overflow", func(p *Profile) { p.CCAMode = 4 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultProfile()
			tt.modify(&p)
			if err := p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProfileSaveKeepsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	original := "# bench radio\nchannel: 11 # default\ntx_power_dbm: 4\n"
	if err := os.WriteFile(path, []byte(original), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := NewProfilePlugin(path)
	if err != nil {
		t.Fatal(err)
	}
	profile := p.Profile()
	profile.Channel = 20
	profile.PANID = 0x1234
	if err := p.Save(profile); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"# bench radio", "channel: 20 # default", "pan_id: 4660"} {
		if !strings.Contains(text, want) {
			t.Errorf("saved profile missing %q:\n%s", want, text)
		}
	}

	reloaded, err := NewProfilePlugin(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Profile(); got != profile {
		t.Errorf("reloaded = %+v, want %+v", got, profile)
	}
}

func TestProfileAppliedOnRadioInit(t *testing.T) {
	profiles, err := NewProfilePlugin(filepath.Join(t.TempDir(), "profile.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	profile := DefaultProfile()
	profile.Channel = 15
	profile.TxPowerDbm = -17
	if err := profiles.Save(profile); err != nil {
		t.Fatal(err)
	}

	radioPlugin, trx := newTestRadio(t)
	app := startPlugins(t, radioPlugin, profiles)

	if code, resp := call(t, app, "POST", "/api/radio/init", nil); code != 200 {
		t.Fatalf("init = %d %+v", code, resp)
	}
	if got := trx.chip.Reg(at86.RegPhyCcCca) & 0x1F; got != 15 {
		t.Errorf("channel = %d, want 15", got)
	}
	if got := trx.chip.Reg(at86.RegPhyTxPwr) & 0x0F; got != 0x0F {
		t.Errorf("power code = 0x%X, want 0xF", got)
	}
	if trx.chip.Reg(at86.RegTrxCtrl0)&0x20 == 0 {
		t.Error("profile phase setting not applied")
	}
	if got := trx.chip.Reg(at86.RegPhyCcCca) & 0x60; got != 0x20 {
		t.Errorf("cca mode bits = 0x%02X, want 0x20", got)
	}
}

func TestProfileRoutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	profiles, err := NewProfilePlugin(path)
	if err != nil {
		t.Fatal(err)
	}
	radioPlugin, trx := newTestRadio(t)
	app := startPlugins(t, radioPlugin, profiles)

	code, resp := call(t, app, "POST", "/api/profile", map[string]int{"channel": 12})
	if code != 200 || resp.Message != "Profile saved, radio not initialized" {
		t.Errorf("save before init = %d %+v", code, resp)
	}

	call(t, app, "POST", "/api/radio/init", nil)
	code, resp = call(t, app, "POST", "/api/profile", map[string]int{"channel": 25})
	if code != 200 || resp.Message != "Profile saved and applied" {
		t.Errorf("save after init = %d %+v", code, resp)
	}
	if got := trx.chip.Reg(at86.RegPhyCcCca) & 0x1F; got != 25 {
		t.Errorf("channel = %d, want 25", got)
	}

	_, resp = call(t, app, "GET", "/api/profile", nil)
	if resp.Data["channel"] != float64(25) || resp.Data["tx_power_dbm"] != float64(4) {
		t.Errorf("profile = %v", resp.Data)
	}

	if code, _ := call(t, app, "POST", "/api/profile", map[string]int{"tx_power_dbm": 9}); code != 400 {
		t.Errorf("invalid profile = %d, want 400", code)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("profile file: %v", err)
	}
}
