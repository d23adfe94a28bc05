// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"

	"microtools/internal/hostdev"

	tea "github.com/charmbracelet/bubbletea"
)

var testDevices = []hostdev.Device{
	{ID: 0, Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 44100},
	{ID: 1, Name: "Interface", MaxInputChannels: 4, MaxOutputChannels: 4, DefaultSampleRate: 48000},
}

func press(t *testing.T, m tea.Model, keys ...tea.KeyType) (tea.Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(tea.KeyMsg{Type: k})
	}
	return m, cmd
}

func loadedModel(t *testing.T) tea.Model {
	t.Helper()
	m := NewDeviceListModel(func() ([]hostdev.Device, error) { return testDevices, nil })
	msg := m.Init()()
	model, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	model, _ = model.Update(msg)
	return model
}

func TestDevicePickerSelection(t *testing.T) {
	m := loadedModel(t)
	if !strings.Contains(m.View(), "Interface") {
		t.Fatalf("device list not rendered:\n%s", m.View())
	}

	// Second device, configure, one rate down from its default of 48000.
	m, cmd := press(t, m, tea.KeyDown, tea.KeyEnter, tea.KeyDown, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("expected quit after selection")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.QuitMsg")
	}

	sel, ok := m.(DeviceListModel).Selection()
	if !ok {
		t.Fatal("no selection")
	}
	if sel.Device.ID != 1 || sel.SampleRate != 88200 {
		t.Errorf("Selection: got device %d at %v Hz", sel.Device.ID, sel.SampleRate)
	}
}

func TestDevicePickerEscapeReturnsToList(t *testing.T) {
	m := loadedModel(t)
	m, _ = press(t, m, tea.KeyEnter)
	if !strings.Contains(m.View(), "Device Configuration") {
		t.Fatalf("expected configuration screen:\n%s", m.View())
	}
	m, _ = press(t, m, tea.KeyEsc)
	if !strings.Contains(m.View(), "Audio Device List") {
		t.Errorf("expected list screen:\n%s", m.View())
	}
	if _, ok := m.(DeviceListModel).Selection(); ok {
		t.Error("no selection expected")
	}
}

func TestDevicePickerListError(t *testing.T) {
	m := NewDeviceListModel(func() ([]hostdev.Device, error) { return nil, errors.New("no host api") })
	msg := m.Init()()
	model, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	model, _ = model.Update(msg)
	if !strings.Contains(model.View(), "no host api") {
		t.Errorf("error not shown:\n%s", model.View())
	}
}
