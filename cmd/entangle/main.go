package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/cicerolneto/entangle/camera"
	"github.com/cicerolneto/entangle/debug"
	"github.com/cicerolneto/entangle/generichttp"
	httpcam "github.com/cicerolneto/entangle/generichttp/camera"
	"github.com/cicerolneto/entangle/gphoto"
	"github.com/cicerolneto/entangle/imgrec"
	"github.com/cicerolneto/entangle/pixbuf"
	"github.com/cicerolneto/entangle/server/middleware/locker"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/afero"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "entangle.yml"
	k              = koanf.New(".")
)

type recorder struct {
	// Root is the root folder to write to
	Root string `yaml:"Root"`

	// Prefix is the filename prefix to use
	Prefix string `yaml:"Prefix"`

	// Enabled turns on recording of every capture at startup
	Enabled bool `yaml:"Enabled"`
}

type connect struct {
	InitialInterval time.Duration `yaml:"InitialInterval"`
	MaxElapsed      time.Duration `yaml:"MaxElapsed"`
}

type preview struct {
	FPS float64 `yaml:"FPS"`
}

type raw struct {
	Dcraw string `yaml:"Dcraw"`
}

type config struct {
	Addr     string   `yaml:"Addr"`
	Root     string   `yaml:"Root"`
	Model    string   `yaml:"Model"`
	Port     string   `yaml:"Port"`
	LogLevel string   `yaml:"LogLevel"`
	Recorder recorder `yaml:"Recorder"`
	Connect  connect  `yaml:"Connect"`
	Preview  preview  `yaml:"Preview"`
	Raw      raw      `yaml:"Raw"`
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Addr:     ":8000",
		Root:     "/",
		Model:    "auto",
		Port:     "auto",
		LogLevel: "info",
		Recorder: recorder{Prefix: "img"},
		Connect: connect{
			InitialInterval: camera.DefaultRetry.InitialInterval,
			MaxElapsed:      camera.DefaultRetry.MaxElapsed},
		Preview: preview{FPS: 5},
		Raw:     raw{Dcraw: "dcraw"}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `entangle exposes a tethered camera over HTTP
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of linking libgphoto2 themselves.

Usage:
	entangle <command>

Commands:
	run
	list
	capture
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `entangle is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  Keys are not case-sensitive.
The command mkconf generates the configuration file with the default values.
There is no need to do this unless you want to start from the prepopulated defaults when making
a config file.

Model and Port 'auto' use the first camera found by the list command.  Port 'mock:'
serves an in-memory camera, which is useful to develop clients without hardware.

Cameras that were just plugged in often refuse the first connections.  The server
retries with an exponential backoff starting at Connect.InitialInterval, for at most
Connect.MaxElapsed.

The capture command takes one picture, downloads it, and writes it under Recorder.Root
(the working directory if empty).

Raw files (.cr2, .nef, ...) without a usable embedded preview are decoded by running
dcraw; set Raw.Dcraw if it is not on your PATH.

If the files and folders created do not have the permissions you want on linux,
your umask is likely to blame  entangle makes them with permission 666, but your
umask is probably the default of 0022 which knocks them down to 644.  Set your
umask to 0000 before running entangle to solve this.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("entangle version %v\n", Version)
}

func loadconfig() config {
	cfg := config{}
	if err := k.Unmarshal("", &cfg); err != nil {
		log.Fatal(err)
	}
	debug.Init(debug.ParseLevel(cfg.LogLevel), nil)
	return cfg
}

// driver returns the in-memory camera for the mock: port and libgphoto2
// otherwise
func driver(cfg config) gphoto.Driver {
	if cfg.Port == "mock:" {
		return gphoto.NewMockDriver()
	}
	drv, err := gphoto.NewLibDriver()
	if err != nil {
		log.Fatalf("loading libgphoto2: %v", err)
	}
	return drv
}

// session returns the configured camera, or the first one detected
func session(cfg config, drv gphoto.Driver) *camera.Session {
	if cfg.Model != "auto" && cfg.Port != "auto" {
		return camera.New(drv, cfg.Model, cfg.Port, false, false, false)
	}
	found, err := camera.List(drv)
	if err != nil {
		log.Fatal(err)
	}
	for _, s := range found {
		if (cfg.Model == "auto" || cfg.Model == s.Model()) && (cfg.Port == "auto" || cfg.Port == s.Port()) {
			return s
		}
	}
	log.Fatal("no camera found, check the list command")
	return nil
}

func dial(ctx context.Context, cfg config, s *camera.Session) {
	rc := camera.DefaultRetry
	rc.InitialInterval = cfg.Connect.InitialInterval
	rc.MaxElapsed = cfg.Connect.MaxElapsed
	log.Printf("connecting to %s on %s\n", s.Model(), s.Port())
	err := camera.ConnectRetry(ctx, s, rc, func(err error, d time.Duration) {
		log.Printf("%v, retrying in %v\n", err, d)
	})
	if err != nil {
		log.Fatal(err)
	}
}

func list() {
	cfg := loadconfig()
	found, err := camera.List(driver(cfg))
	if err != nil {
		log.Fatal(err)
	}
	if len(found) == 0 {
		fmt.Println("no camera detected")
	}
	for _, s := range found {
		fmt.Printf("%-30s %-16s capture=%v preview=%v settings=%v\n",
			s.Model(), s.Port(), s.HasCapture(), s.HasPreview(), s.HasSettings())
	}
	if cfg.Port == "mock:" {
		return
	}
	// libgphoto2 only lists cameras it has a driver for; the USB scan also
	// shows PTP devices it does not know
	usb, err := gphoto.ScanUSB()
	if err != nil {
		log.Printf("USB scan unavailable: %v\n", err)
		return
	}
	for _, u := range usb {
		fmt.Println(u)
	}
}

func capture() {
	cfg := loadconfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := session(cfg, driver(cfg))
	dial(ctx, cfg, s)
	defer s.Disconnect()

	sp, err := newSpinner(ctx)
	if err != nil {
		log.Fatal(err)
	}
	s.SetProgress(sp)
	f, err := s.CaptureImage()
	if err == nil {
		err = s.DownloadFile(f)
	}
	if err != nil {
		sp.fail(err)
		log.Fatal(err)
	}
	r := &imgrec.Recorder{Root: cfg.Recorder.Root, Prefix: cfg.Recorder.Prefix}
	e, err := r.Record(f)
	if err != nil {
		sp.fail(err)
		log.Fatal(err)
	}
	sp.done(fmt.Sprintf("%s -> %s (%d bytes, crc32 %08x)", e.Source, e.Path, e.Size, e.Checksum))
}

func run() {
	cfg := loadconfig()
	s := session(cfg, driver(cfg))
	dial(context.Background(), cfg, s)

	args := cfg.Recorder
	r := &imgrec.Recorder{Root: args.Root, Prefix: args.Prefix, Enabled: args.Enabled}

	tmp, err := os.MkdirTemp("", "entangle")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmp)
	fs := afero.NewOsFs()
	w := httpcam.NewHTTPCamera(s, httpcam.Options{
		Recorder: r,
		Loader:   &pixbuf.Loader{Fs: fs, Raw: &pixbuf.Dcraw{Path: cfg.Raw.Dcraw}},
		Fs:       fs,
		Dir:      filepath.Join(tmp, "files"),
		FPS:      cfg.Preview.FPS,
	})
	lock := locker.New()
	locker.Inject(w, lock)

	// clean up the submux string
	hndlrS := cfg.Root
	hndlrS = generichttp.SubMuxSanitize(hndlrS)
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	mux := chi.NewRouter()
	mux.Use(lock.Check)
	root.Mount(hndlrS, mux)
	w.RT().Bind(mux)
	addr := cfg.Addr + cfg.Root
	log.Println("now listening for requests at ", addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, root))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "list":
		list()
		return
	case "capture":
		capture()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
