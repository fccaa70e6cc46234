// internal/config/watcher.go
package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// handleChange reloads the configuration after the watched file was written.
// A file that no longer parses or validates keeps the previous configuration.
func (cl *ConfigLoader) handleChange(e fsnotify.Event) {
	cl.mu.RLock()
	closed, reload, logger := cl.closed, cl.reload, cl.logger
	cl.mu.RUnlock()

	if closed || reload == nil {
		return
	}
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	logger.Infof("Config file changed: %s", e.Name)
	newConfig, err := reload()
	if err != nil {
		cl.handleError(fmt.Errorf("error reloading configuration: %w", err))
		return
	}
	cl.updateConfig(newConfig)
}

func (cl *ConfigLoader) handleError(err error) {
	cl.mu.Lock()
	cl.lastError = err
	logger := cl.logger
	cl.mu.Unlock()
	logger.Errorf("%v", err)
}

func (cl *ConfigLoader) updateConfig(newConfig interface{}) {
	cl.mu.Lock()
	cl.currentConfig = newConfig
	cl.lastError = nil
	cl.mu.Unlock()
	cl.notifyWatchers(newConfig)
}
