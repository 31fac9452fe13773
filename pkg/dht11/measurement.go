package dht11

import "fmt"

// Measurement is a validated reading of the sensor.
// The zero value is never returned together with a nil error.
type Measurement struct {
	humidityInt     uint8
	humidityFrac    uint8
	temperatureInt  uint8
	temperatureFrac uint8
}

func (m Measurement) HumidityInt() uint8     { return m.humidityInt }
func (m Measurement) HumidityFrac() uint8    { return m.humidityFrac }
func (m Measurement) TemperatureInt() uint8  { return m.temperatureInt }
func (m Measurement) TemperatureFrac() uint8 { return m.temperatureFrac }

// Humidity returns the relative humidity in percent.
func (m Measurement) Humidity() float64 {
	return float64(m.humidityInt) + float64(m.humidityFrac)/10
}

// Temperature returns the temperature in degrees Celsius.
func (m Measurement) Temperature() float64 {
	return float64(m.temperatureInt) + float64(m.temperatureFrac)/10
}

func (m Measurement) String() string {
	return fmt.Sprintf("humidity %d.%d%%, temperature %d.%d°C",
		m.humidityInt, m.humidityFrac, m.temperatureInt, m.temperatureFrac)
}

// Checksum returns the low byte of the sum of the four data bytes.
func Checksum(b [5]byte) byte {
	var sum uint16
	for _, v := range b[:4] {
		sum += uint16(v)
	}
	return byte(sum & 0xff)
}

// Validate checks the checksum byte b[4] and converts the data bytes to a Measurement.
func Validate(b [5]byte) (Measurement, error) {
	if c := Checksum(b); c != b[4] {
		return Measurement{}, &ChecksumError{Computed: c, Received: b[4]}
	}

	return Measurement{
		humidityInt:     b[0],
		humidityFrac:    b[1],
		temperatureInt:  b[2],
		temperatureFrac: b[3],
	}, nil
}
