package raspberry

import (
	"errors"
	"testing"

	"dht11/pkg/dht11"
	"dht11/pkg/port"
	"dht11/pkg/sim"
)

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("bitbang", "gpiochip0"); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("Open() error = %v, want %v", err, ErrInvalidParam)
	}
}

func TestEmulatorPinUsed(t *testing.T) {
	e := OpenEmulator(sim.Frame(40, 0, 22, 0))
	defer func() { _ = e.Close() }()

	if _, err := e.NewPin(4); err != nil {
		t.Fatalf("NewPin(4) unexpected error: %v", err)
	}
	if _, err := e.NewPin(4); !errors.Is(err, ErrPinUsed) {
		t.Errorf("second NewPin(4) error = %v, want %v", err, ErrPinUsed)
	}
}

func TestEmulatorRead(t *testing.T) {
	e := OpenEmulator(sim.Frame(40, 5, 22, 1))
	defer func() { _ = e.Close() }()

	p, err := e.NewPin(17)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(port.LevelWaiter); !ok {
		t.Fatalf("emulated pin %T should wait for edges", p)
	}

	m, err := dht11.Read(p)
	if err != nil {
		t.Fatalf("Read() unexpected error: %v", err)
	}
	if m.HumidityInt() != 40 || m.HumidityFrac() != 5 || m.TemperatureInt() != 22 || m.TemperatureFrac() != 1 {
		t.Errorf("Read() = %v", m)
	}
}
