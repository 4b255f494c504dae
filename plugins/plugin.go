package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"

	"github.com/linht/rf-manager/radio"
)

// Plugin interface that all plugins must implement
type Plugin interface {
	// Name returns the plugin identifier
	Name() string

	// RegisterRoutes adds the plugin's HTTP routes to the app
	RegisterRoutes(app *fiber.App)

	// Shutdown performs cleanup when the plugin is stopped
	Shutdown() error
}

// RadioInitHook is implemented by plugins that configure the radio each
// time it is initialized.
type RadioInitHook interface {
	AfterRadioInit(ctx context.Context, svc *radio.Service) error
}

// PluginFactory creates a new plugin instance
type PluginFactory func(config interface{}) (Plugin, error)

var registry = make(map[string]PluginFactory)

var (
	runningMu sync.RWMutex
	running   = make(map[string]Plugin)
)

// Register adds a plugin factory to the registry
func Register(name string, factory PluginFactory) {
	registry[name] = factory
}

// Get retrieves a plugin factory by name
func Get(name string) (PluginFactory, bool) {
	factory, exists := registry[name]
	return factory, exists
}

// Started records a plugin instance so other plugins can find it
func Started(p Plugin) {
	runningMu.Lock()
	defer runningMu.Unlock()
	running[p.Name()] = p
}

// Stopped forgets a plugin instance
func Stopped(p Plugin) {
	runningMu.Lock()
	defer runningMu.Unlock()
	if running[p.Name()] == p {
		delete(running, p.Name())
	}
}

// Running returns the started plugin with the given name
func Running(name string) (Plugin, bool) {
	runningMu.RLock()
	defer runningMu.RUnlock()
	p, ok := running[name]
	return p, ok
}

func runningPlugins() []Plugin {
	runningMu.RLock()
	defer runningMu.RUnlock()
	out := make([]Plugin, 0, len(running))
	for _, p := range running {
		out = append(out, p)
	}
	return out
}

// radioService returns the service of the started radio plugin
func radioService() (*radio.Service, error) {
	p, ok := Running("radio")
	if !ok {
		return nil, fmt.Errorf("radio plugin not loaded")
	}
	rp, ok := p.(*RadioPlugin)
	if !ok {
		return nil, fmt.Errorf("radio plugin has unexpected type %T", p)
	}
	return rp.Service()
}

// decodeConfig converts a generic plugin config map into out through its
// yaml tags
func decodeConfig(config interface{}, out interface{}) error {
	if config == nil {
		return nil
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// TokenValidator is a function type for validating authentication tokens
type TokenValidator func(token string) bool
