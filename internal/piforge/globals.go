package piforge

import (
	"sync/atomic"

	"github.com/gookit/color"
)

// GLOBAL STATE
// We use a value of 1 for critical and 0 for non-critical/default.
var isCriticalAtomic atomic.Int32

// Global variables
var (
	SourceDir  string // firmware source tree driven by make
	CacheDir   string // downloaded boot/WLAN firmware blobs
	StageDir   string // staged SD-card layout
	DistDir    string // release archives + checksums
	LogDir     string // per-board build logs
	Prefix32   string // 32-bit cross toolchain prefix
	Prefix64   string // 64-bit cross toolchain prefix
	WithHDMI   bool
	MakeJobs   int
	Debug      bool
	Verbose    bool
	ConfigFile = "piforge.conf"
	SystemConf = "/etc/piforge.conf"
	version    = "dev"     // overridden at build time
	buildDate  = "unknown" // overridden at build time
	// Global executors (declared, to be assigned in Main)
	UserExec *Executor
	RootExec *Executor
	// Raw blob URLs for boot and WLAN firmware downloads.
	firmwareBootURL = "https://github.com/raspberrypi/firmware/raw/master/boot"
	firmwareWlanURL = "https://github.com/RPi-Distro/firmware-nonfree/raw/master/debian/config/brcm80211/cypress"
)

// color helpers
var (
	colInfo    = color.Info // style provided by gookit/color
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)
