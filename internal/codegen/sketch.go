package codegen

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/fishcontrol/fishcontrol-core/internal/device"
)

//go:embed sketch.tmpl
var templates embed.FS

// Version identifies the generator revision and is rendered into the
// sketch header so a flashed build can be traced back.
const Version = "1.0"

const (
	// DefaultSSID and DefaultPassword are the access point credentials
	// compiled into the sketch when Options leaves them empty.
	DefaultSSID     = "FishControl_WiFi"
	DefaultPassword = "fish2025"

	// DefaultLogHost is the address the controller forwards its logs
	// to. 192.168.4.2 is the first DHCP lease the UNO R4 access point
	// hands out, which is where the core normally runs.
	DefaultLogHost = "192.168.4.2"
	DefaultLogPort = 8080
)

var (
	// ErrNoDevices is returned when the catalogue holds no enabled
	// actuators to compile a sketch for.
	ErrNoDevices = errors.New("codegen: no devices to generate")

	// ErrRender is returned when template execution fails.
	ErrRender = errors.New("codegen: render failed")
)

// Options configures the generated sketch. Zero values fall back to
// the defaults above.
type Options struct {
	SSID     string
	Password string
	LogHost  string
	LogPort  int
}

type sketchDevice struct {
	ID   string
	Name string
	Pin  int
	PWM  bool
}

type sketchData struct {
	Version  string
	SSID     string
	Password string
	LogHost  string
	LogPort  int
	Count    int
	Devices  []sketchDevice
}

// Generate renders the controller sketch for the given actuators.
// Disabled devices are skipped. Output is deterministic: devices are
// ordered by ID and no timestamps are embedded, so two runs over the
// same catalogue produce identical sketches.
func Generate(actuators []device.Actuator, opts Options) (string, error) {
	devs := make([]sketchDevice, 0, len(actuators))
	for _, a := range actuators {
		if !a.Enabled {
			continue
		}
		devs = append(devs, sketchDevice{
			ID:   a.ID,
			Name: a.Name,
			Pin:  a.Pin,
			PWM:  a.Mode == device.ModePWM,
		})
	}
	if len(devs) == 0 {
		return "", ErrNoDevices
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].ID < devs[j].ID })

	data := sketchData{
		Version:  Version,
		SSID:     opts.SSID,
		Password: opts.Password,
		LogHost:  opts.LogHost,
		LogPort:  opts.LogPort,
		Count:    len(devs),
		Devices:  devs,
	}
	if data.SSID == "" {
		data.SSID = DefaultSSID
	}
	if data.Password == "" {
		data.Password = DefaultPassword
	}
	if data.LogHost == "" {
		data.LogHost = DefaultLogHost
	}
	if data.LogPort == 0 {
		data.LogPort = DefaultLogPort
	}

	tmpl, err := template.ParseFS(templates, "sketch.tmpl")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	return buf.String(), nil
}
