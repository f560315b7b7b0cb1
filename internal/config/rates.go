package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// defaultRates are NPR per one unit of each currency. They match the rates
// quoted to the model in matching prompts so conversions stay consistent.
var defaultRates = map[string]float64{
	"USD": 134,
	"CAD": 100,
	"AUD": 88,
	"GBP": 168,
	"EUR": 145,
	"NZD": 88,
}

// RateTable converts foreign-currency amounts into NPR. Rates come from the
// built-in defaults, optionally overridden by a YAML file that can be
// hot-reloaded while the server runs.
type RateTable struct {
	mu    sync.RWMutex
	rates map[string]float64
}

type ratesFile struct {
	Rates map[string]float64 `yaml:"rates"`
}

// NewRateTable builds a rate table. If path is non-empty the file is loaded
// over the defaults; a missing or unparseable file keeps the defaults.
func NewRateTable(path string) *RateTable {
	t := &RateTable{rates: make(map[string]float64, len(defaultRates))}
	for c, r := range defaultRates {
		t.rates[c] = r
	}
	if path != "" {
		if err := t.loadFile(path); err != nil {
			log.Printf("⚠️ [RATES] Using default rates, could not load %s: %v", path, err)
		} else {
			log.Printf("✅ [RATES] Loaded currency rates from %s", path)
		}
	}
	return t
}

func (t *RateTable) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rates file: %w", err)
	}
	var f ratesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse rates YAML: %w", err)
	}
	if len(f.Rates) == 0 {
		return fmt.Errorf("rates file %s contains no rates", path)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for c, r := range f.Rates {
		if r > 0 {
			t.rates[strings.ToUpper(c)] = r
		}
	}
	return nil
}

// Watch reloads the rates file whenever it changes. Blocks until the watcher
// fails; run it in a goroutine.
func (t *RateTable) Watch(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️ [RATES] File watcher unavailable: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		log.Printf("⚠️ [RATES] Cannot watch %s: %v", path, err)
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := t.loadFile(path); err != nil {
					log.Printf("⚠️ [RATES] Reload failed: %v", err)
				} else {
					log.Printf("🔄 [RATES] Currency rates reloaded from %s", path)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️ [RATES] Watcher error: %v", err)
		}
	}
}

// Get returns NPR per one unit of currency
func (t *RateTable) Get(currency string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.rates[strings.ToUpper(currency)]
	return r, ok
}

// ToNPR converts an amount in the given currency to NPR. Unknown currencies
// fall back to the USD rate, matching the original budget-filter behavior.
func (t *RateTable) ToNPR(amount float64, currency string) float64 {
	r, ok := t.Get(currency)
	if !ok {
		r, _ = t.Get("USD")
	}
	return amount * r
}

// PromptLine renders the table the way matching prompts quote it,
// e.g. "CAD=100NPR, USD=134NPR, AUD=88NPR, GBP=168NPR".
func (t *RateTable) PromptLine() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	currencies := make([]string, 0, len(t.rates))
	for c := range t.rates {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	parts := make([]string, 0, len(currencies))
	for _, c := range currencies {
		parts = append(parts, fmt.Sprintf("%s=%gNPR", c, t.rates[c]))
	}
	return strings.Join(parts, ", ")
}
