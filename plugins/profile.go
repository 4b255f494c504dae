package plugins

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"

	"github.com/linht/rf-manager/at86"
	"github.com/linht/rf-manager/radio"
)

// Profile is the persisted radio configuration applied after every
// transceiver initialization
type Profile struct {
	Channel      uint8  `yaml:"channel" json:"channel"`
	TxPowerDbm   int    `yaml:"tx_power_dbm" json:"tx_power_dbm"`
	PANID        uint16 `yaml:"pan_id" json:"pan_id"`
	ShortAddr    uint16 `yaml:"short_addr" json:"short_addr"`
	CCAMode      uint8  `yaml:"cca_mode" json:"cca_mode"`
	PhaseEnabled bool   `yaml:"phase_enabled" json:"phase_enabled"`
}

// DefaultProfile matches the chip's reset configuration with phase
// measurement on
func DefaultProfile() Profile {
	return Profile{
		Channel:      11,
		TxPowerDbm:   4,
		PANID:        0xFFFF,
		ShortAddr:    0xFFFF,
		CCAMode:      1,
		PhaseEnabled: true,
	}
}

// Validate checks the profile against the chip's ranges
func (p Profile) Validate() error {
	if p.Channel > at86.FieldChannel.Max() {
		return fmt.Errorf("channel %d out of range", p.Channel)
	}
	if p.TxPowerDbm < at86.MinTxPowerDbm || p.TxPowerDbm > at86.MaxTxPowerDbm {
		return fmt.Errorf("tx power %d dBm outside [%d, %d]", p.TxPowerDbm, at86.MinTxPowerDbm, at86.MaxTxPowerDbm)
	}
	if p.CCAMode > at86.FieldCcaMode.Max() {
		return fmt.Errorf("cca mode %d out of range", p.CCAMode)
	}
	return nil
}

// Apply writes the profile to the device
func (p Profile) Apply(ctx context.Context, svc *radio.Service) error {
	return svc.Do(ctx, func(dev *at86.Device) error {
		if err := dev.SetChannel(p.Channel); err != nil {
			return err
		}
		if err := dev.SetTxPower(p.TxPowerDbm); err != nil {
			return err
		}
		if err := dev.SetPANID(p.PANID); err != nil {
			return err
		}
		if err := dev.SetShortAddress(p.ShortAddr); err != nil {
			return err
		}
		if err := dev.SetCCAMode(p.CCAMode); err != nil {
			return err
		}
		return dev.EnablePhaseMeasurement(p.PhaseEnabled)
	})
}

// ProfilePlugin loads, saves and applies the radio profile
type ProfilePlugin struct {
	path    string
	mu      sync.RWMutex
	profile Profile
}

// NewProfilePlugin reads the profile at path. A missing file yields the
// default profile; it is created on the first save.
func NewProfilePlugin(path string) (*ProfilePlugin, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required in profile plugin configuration")
	}

	p := &ProfilePlugin{path: path, profile: DefaultProfile()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("Radio profile not found, using defaults", "path", path)
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, &p.profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if err := p.profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}

	slog.Info("Radio profile loaded", "path", path, "channel", p.profile.Channel)
	return p, nil
}

// Name returns the plugin identifier
func (p *ProfilePlugin) Name() string {
	return "profile"
}

// RegisterRoutes adds the plugin's HTTP routes
func (p *ProfilePlugin) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/profile")

	api.Get("/", p.handleLoad)
	api.Post("/", p.handleSave)
}

// Shutdown performs cleanup
func (p *ProfilePlugin) Shutdown() error {
	return nil
}

// Profile returns the current profile
func (p *ProfilePlugin) Profile() Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

// AfterRadioInit applies the profile to a freshly initialized radio
func (p *ProfilePlugin) AfterRadioInit(ctx context.Context, svc *radio.Service) error {
	profile := p.Profile()
	if err := profile.Apply(ctx, svc); err != nil {
		return fmt.Errorf("failed to apply profile: %w", err)
	}
	slog.Info("Radio profile applied", "channel", profile.Channel, "tx_power_dbm", profile.TxPowerDbm)
	return nil
}

// Save persists profile. Comments and key order of an existing file are
// kept.
func (p *ProfilePlugin) Save(profile Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	var update yaml.Node
	if err := update.Encode(profile); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	root := &update
	if data, err := os.ReadFile(p.path); err == nil {
		var existing yaml.Node
		if err := yaml.Unmarshal(data, &existing); err == nil && len(existing.Content) > 0 {
			mergeYAMLMapping(existing.Content[0], &update)
			root = &existing
		}
	}

	data, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to serialize profile: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".profile-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace profile: %w", err)
	}

	p.mu.Lock()
	p.profile = profile
	p.mu.Unlock()
	return nil
}

// mergeYAMLMapping copies the scalar values of src into dst, adding keys
// dst lacks
func mergeYAMLMapping(dst, src *yaml.Node) {
	if dst.Kind != yaml.MappingNode || src.Kind != yaml.MappingNode {
		*dst = *src
		return
	}
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, value := src.Content[i], src.Content[i+1]
		found := false
		for j := 0; j+1 < len(dst.Content); j += 2 {
			if dst.Content[j].Value == key.Value {
				dst.Content[j+1].Kind = value.Kind
				dst.Content[j+1].Tag = value.Tag
				dst.Content[j+1].Value = value.Value
				dst.Content[j+1].Style = value.Style
				found = true
				break
			}
		}
		if !found {
			dst.Content = append(dst.Content, key, value)
		}
	}
}

// handleLoad handles GET /api/profile
func (p *ProfilePlugin) handleLoad(c *fiber.Ctx) error {
	return SendSuccess(c, p.Profile(), "")
}

// handleSave handles POST /api/profile
func (p *ProfilePlugin) handleSave(c *fiber.Ctx) error {
	profile := p.Profile()
	if err := c.BodyParser(&profile); err != nil {
		return SendErrorMessage(c, 400, "Invalid request body")
	}
	if err := profile.Validate(); err != nil {
		return SendErrorMessage(c, 400, err.Error())
	}

	if err := p.Save(profile); err != nil {
		return SendError(c, 500, err)
	}
	slog.Info("Radio profile saved", "path", p.path)

	svc, err := radioService()
	if err != nil {
		return SendSuccess(c, profile, "Profile saved, radio not initialized")
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), deviceTimeout)
	defer cancel()
	if err := profile.Apply(ctx, svc); err != nil {
		return SendRadioError(c, fmt.Errorf("profile saved but not applied: %w", err))
	}
	return SendSuccess(c, profile, "Profile saved and applied")
}

// Register the plugin
func init() {
	Register("profile", func(config interface{}) (Plugin, error) {
		var path string

		if configMap, ok := config.(map[string]interface{}); ok {
			if p, ok := configMap["path"].(string); ok && p != "" {
				path = p
			}
		}

		return NewProfilePlugin(path)
	})
}
