package hardware

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// ADC0834Sensor reads a photoresistor through an ADC0834 on the SPI bus.
type ADC0834Sensor struct {
	mu   sync.Mutex
	port spi.PortCloser
	conn spi.Conn
}

// NewADC0834Sensor opens the SPI port (empty name = first available) and
// connects at 1 MHz, mode 0.
func NewADC0834Sensor(dev string) (*ADC0834Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	port, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open spi port: %w", err)
	}

	conn, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi: %w", err)
	}

	return &ADC0834Sensor{port: port, conn: conn}, nil
}

// Level performs a single-ended CH0 conversion and returns the raw value.
func (s *ADC0834Sensor) Level() (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// ADC0834 single-ended CH0 read: command byte 0x8C, result in second byte
	write := []byte{0x8C, 0x00}
	read := make([]byte, len(write))
	if err := s.conn.Tx(write, read); err != nil {
		return 0, fmt.Errorf("adc read: %w", err)
	}
	return read[1], nil
}

// Close releases the SPI port.
func (s *ADC0834Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return s.port.Close()
	}
	return nil
}
