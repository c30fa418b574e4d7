package ui

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/altobi/storyboard-exporter/internal/exporter"
)

type Tray struct {
	bus    *exporter.EventBus
	logger *slog.Logger

	statusItem   *systray.MenuItem
	progressItem *systray.MenuItem

	mu sync.Mutex

	onQuit func()
	stop   chan struct{}
}

type TrayConfig struct {
	Bus    *exporter.EventBus
	Logger *slog.Logger
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		bus:    cfg.Bus,
		logger: cfg.Logger,
		onQuit: cfg.OnQuit,
		stop:   make(chan struct{}),
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Storyboard Exporter")
	systray.SetTooltip("Storyboard Exporter Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current export status")
	t.statusItem.Disable()

	t.progressItem = systray.AddMenuItem("Progress: -", "Current export progress")
	t.progressItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Storyboard Exporter")

	go func() {
		for {
			select {
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.stop:
				return
			}
		}
	}()

	if t.bus != nil {
		go t.watch()
	}

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.stop)
	t.logger.Info("system tray exiting")
}

// watch follows the export event stream and mirrors it in the menu.
func (t *Tray) watch() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq int64
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}

		for _, event := range t.bus.Since(lastSeq) {
			lastSeq = event.Seq

			switch event.Type {
			case exporter.EventTypeState:
				t.UpdateStatus(string(event.State))
			case exporter.EventTypeProgress:
				t.UpdateProgress(event.Progress)
			case exporter.EventTypeComplete:
				t.UpdateStatus("complete")
				t.UpdateProgress(100)
			case exporter.EventTypeError:
				t.UpdateStatus("failed")
			}
		}
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateProgress(pct float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progressItem.SetTitle(fmt.Sprintf("Progress: %.0f%%", pct))
}

func (t *Tray) Quit() {
	systray.Quit()
}
