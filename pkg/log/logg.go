package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gookit/color"
	uberatomic "go.uber.org/atomic"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	_Off = iota
	_Fatal
	_Error
	_Chek
	_Warn
	_Info
	_Debug
	_Trace
)

type (
	// LevelPrinter defines a set of terminal printing primitives that output with
	// extra data, time, log logLevelList, and code location
	LevelPrinter struct {
		// Ln prints lists of interfaces with spaces in between
		Ln func(a ...interface{})
		// F prints like fmt.Println surrounded by log details
		F func(format string, a ...interface{})
		// S prints a spew.Sdump for an interface slice
		S func(a ...interface{})
		// C accepts a function so that the extra computation can be avoided if it is
		// not being viewed
		C func(closure func() string)
		// Chk is a shortcut for printing if there is an error, or returning true
		Chk func(e error) bool
	}
	logLevelList struct {
		Off, Fatal, Error, Check, Warn, Info, Debug, Trace int32
	}
	LevelSpec struct {
		ID        int32
		Name      string
		Colorizer func(format string, a ...interface{}) string
	}
)

var (
	App          = "   nbc"
	AppColorizer = color.White.Sprint
	currentLevel = uberatomic.NewInt32(logLevels.Info)
	// writer can be swapped out for any io.Writer with SetLogWriter
	writer   io.Writer = os.Stderr
	writerMx sync.Mutex
	// fileSink is the rotating log file opened by SetLogWriteToFile, if any
	fileSink *lumberjack.Logger
	// allSubsystems stores all of the package subsystem names found in the current
	// application
	allSubsystems []string
	// highlighted is a text that helps visually distinguish a log entry by category
	highlighted = make(map[string]struct{})
	// logFilter specifies a set of packages that will not pr logs
	logFilter = make(map[string]struct{})
	// mutexes to prevent concurrent map accesses
	highlightMx, _logFilterMx sync.Mutex
	// logLevels is a shorthand access that minimises possible Name collisions in the
	// dot import
	logLevels = logLevelList{
		Off:   _Off,
		Fatal: _Fatal,
		Error: _Error,
		Check: _Chek,
		Warn:  _Warn,
		Info:  _Info,
		Debug: _Debug,
		Trace: _Trace,
	}
	// LevelSpecs specifies the id, string name and color-printing function
	LevelSpecs = []LevelSpec{
		{logLevels.Off, "off  ", color.Bit24(0, 0, 0, false).Sprintf},
		{logLevels.Fatal, "fatal", color.Bit24(128, 0, 0, false).Sprintf},
		{logLevels.Error, "error", color.Bit24(255, 0, 0, false).Sprintf},
		{logLevels.Check, "check", color.Bit24(255, 255, 0, false).Sprintf},
		{logLevels.Warn, "warn ", color.Bit24(0, 255, 0, false).Sprintf},
		{logLevels.Info, "info ", color.Bit24(255, 255, 0, false).Sprintf},
		{logLevels.Debug, "debug", color.Bit24(0, 128, 255, false).Sprintf},
		{logLevels.Trace, "trace", color.Bit24(128, 0, 255, false).Sprintf},
	}
	Levels = []string{
		Off,
		Fatal,
		Error,
		Check,
		Warn,
		Info,
		Debug,
		Trace,
	}
	// levelAliases are the node severity names that do not share a first letter
	// with a level above
	levelAliases = map[string]int32{
		Protocol: _Trace,
	}
)

const (
	Off   = "off"
	Fatal = "fatal"
	Error = "error"
	Warn  = "warn"
	Info  = "info"
	Check = "check"
	Debug = "debug"
	Trace = "trace"
	// Protocol is the severity that dumps every message sent and received, it is
	// the same as trace
	Protocol = "protocol"
)

// GetLogPrinterSet returns a set of LevelPrinter with their subsystem preloaded
func GetLogPrinterSet(subsystem string) (Fatal, Error, Warn, Info, Debug, Trace LevelPrinter) {
	return _getOnePrinter(_Fatal, subsystem),
		_getOnePrinter(_Error, subsystem),
		_getOnePrinter(_Warn, subsystem),
		_getOnePrinter(_Info, subsystem),
		_getOnePrinter(_Debug, subsystem),
		_getOnePrinter(_Trace, subsystem)
}

func _getOnePrinter(level int32, subsystem string) LevelPrinter {
	return LevelPrinter{
		Ln:  _ln(level, subsystem),
		F:   _f(level, subsystem),
		S:   _s(level, subsystem),
		C:   _c(level, subsystem),
		Chk: _chk(level, subsystem),
	}
}

// SetLogLevel sets the log level via a string, which can be truncated down to
// one character, similar to nmcli's argument processor, as the first letter is
// unique. "protocol" is accepted as a synonym of trace.
func SetLogLevel(l string) {
	if l == "" {
		l = "info"
	}
	l = strings.ToLower(l)
	if lvl, ok := levelAliases[l]; ok {
		currentLevel.Store(lvl)
		return
	}
	lvl := logLevels.Info
	for i := range LevelSpecs {
		if LevelSpecs[i].Name[:1] == l[:1] {
			lvl = LevelSpecs[i].ID
		}
	}
	currentLevel.Store(lvl)
}

// GetLogLevel returns the name of the current log level
func GetLogLevel() string {
	return strings.TrimSpace(LevelSpecs[currentLevel.Load()].Name)
}

// Enabled reports whether a printer of the named level would print
func Enabled(l string) bool {
	for i := range LevelSpecs {
		if strings.TrimSpace(LevelSpecs[i].Name) == l {
			return LevelSpecs[i].ID <= currentLevel.Load()
		}
	}
	return false
}

// SetLogWriter changes the log io.Writer interface
func SetLogWriter(wr io.Writer) {
	writerMx.Lock()
	writer = wr
	writerMx.Unlock()
}

// SetLogWriteToFile tees the log into a rotating file named log<appName> in the
// given directory
func SetLogWriteToFile(path, appName string) (e error) {
	if e = os.MkdirAll(path, 0700); e != nil {
		fmt.Fprintln(os.Stderr, "unable to create log directory", path, "error:", e)
		return
	}
	path = filepath.Join(path, "log"+appName)
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		Compress:   false,
	}
	if _, e = sink.Write([]byte("logging to file '" + path + "'\n")); e != nil {
		fmt.Fprintln(os.Stderr, "unable to write log to", path, "error:", e)
		return
	}
	writerMx.Lock()
	if fileSink != nil {
		_ = fileSink.Close()
	}
	fileSink = sink
	writer = io.MultiWriter(os.Stderr, sink)
	writerMx.Unlock()
	return
}

// CloseLogFile closes the rotating file sink and restores stderr
func CloseLogFile() (e error) {
	writerMx.Lock()
	defer writerMx.Unlock()
	if fileSink == nil {
		return
	}
	e = fileSink.Close()
	fileSink = nil
	writer = os.Stderr
	return
}

// SortSubsystemsList sorts the list of subsystems, to keep the data read-only,
// call this function right at the top of the main, which runs after
// declarations and main/init. Really this is just here to alert the reader.
func SortSubsystemsList() {
	sort.Strings(allSubsystems)
}

// Subsystems returns a copy of the registered subsystem names
func Subsystems() (o []string) {
	o = make([]string, len(allSubsystems))
	copy(o, allSubsystems)
	return
}

// AddLoggerSubsystem adds a subsystem to the list of known subsystems and returns the
// string so it is nice and neat in the package log.go file
func AddLoggerSubsystem(pathBase string) (subsystem string) {
	var ok bool
	var file string
	_, file, _, ok = runtime.Caller(1)
	if ok {
		r := strings.Split(file, pathBase)
		fromRoot := filepath.Base(file)
		if len(r) > 1 {
			fromRoot = r[1]
		}
		split := strings.Split(fromRoot, "/")
		subsystem = strings.Join(split[:len(split)-1], "/")
		allSubsystems = append(allSubsystems, subsystem)
	}
	return
}

// StoreHighlightedSubsystems sets the list of subsystems to highlight
func StoreHighlightedSubsystems(highlights []string) {
	highlightMx.Lock()
	highlighted = make(map[string]struct{}, len(highlights))
	for i := range highlights {
		highlighted[highlights[i]] = struct{}{}
	}
	highlightMx.Unlock()
}

// StoreSubsystemFilter sets the list of subsystems to filter
func StoreSubsystemFilter(filter []string) {
	_logFilterMx.Lock()
	logFilter = make(map[string]struct{}, len(filter))
	for i := range filter {
		logFilter[filter[i]] = struct{}{}
	}
	_logFilterMx.Unlock()
}

// LoadSubsystemFilter returns a copy of the map of filtered subsystems
func LoadSubsystemFilter() (o []string) {
	_logFilterMx.Lock()
	o = make([]string, 0, len(logFilter))
	for i := range logFilter {
		o = append(o, i)
	}
	_logFilterMx.Unlock()
	sort.Strings(o)
	return
}

// _isHighlighted returns true if the subsystem is in the list to have attention
// getters added to them
func _isHighlighted(subsystem string) (found bool) {
	highlightMx.Lock()
	_, found = highlighted[subsystem]
	highlightMx.Unlock()
	return
}

// _isSubsystemFiltered returns true if the subsystem should not pr logs
func _isSubsystemFiltered(subsystem string) (found bool) {
	_logFilterMx.Lock()
	_, found = logFilter[subsystem]
	_logFilterMx.Unlock()
	return
}

func getTimeText() string {
	return color.Bit24(99, 99, 99, false).Sprint(time.Now().Format(time.StampMilli))
}

// printable is the gate shared by every printer
func printable(level int32, subsystem string) bool {
	return level <= currentLevel.Load() && !_isSubsystemFiltered(subsystem)
}

// emit formats one log line. It must be called directly by the printer closure
// so the code location skip count stays right.
func emit(level int32, subsystem, text string) {
	printer := fmt.Sprintf
	if _isHighlighted(subsystem) {
		printer = color.Bold.Sprintf
	}
	line := printer(
		"%-58v%s%s%-6v %s\n",
		getLoc(3, subsystem),
		getTimeText(),
		color.Bit24(20, 20, 20, true).Sprint(AppColorizer(" "+App)),
		LevelSpecs[level].Colorizer(
			color.Bit24(20, 20, 20, true).Sprint(" "+LevelSpecs[level].Name+" "),
		),
		text,
	)
	writerMx.Lock()
	fmt.Fprint(writer, line)
	writerMx.Unlock()
}

func _ln(level int32, subsystem string) func(a ...interface{}) {
	return func(a ...interface{}) {
		if printable(level, subsystem) {
			emit(level, subsystem, AppColorizer(joinStrings(" ", a...)))
		}
	}
}

func _f(level int32, subsystem string) func(format string, a ...interface{}) {
	return func(format string, a ...interface{}) {
		if printable(level, subsystem) {
			emit(level, subsystem, AppColorizer(fmt.Sprintf(format, a...)))
		}
	}
}

func _s(level int32, subsystem string) func(a ...interface{}) {
	return func(a ...interface{}) {
		if printable(level, subsystem) {
			emit(
				level, subsystem,
				AppColorizer(" spew:")+
					color.Bit24(20, 20, 20, true).Sprint("\n\n"+spew.Sdump(a)),
			)
		}
	}
}

func _c(level int32, subsystem string) func(closure func() string) {
	return func(closure func() string) {
		if printable(level, subsystem) {
			emit(level, subsystem, AppColorizer(closure()))
		}
	}
}

func _chk(level int32, subsystem string) func(e error) bool {
	return func(e error) bool {
		if e == nil {
			return false
		}
		if printable(level, subsystem) {
			emit(level, subsystem, LevelSpecs[level].Colorizer(e.Error()))
		}
		return true
	}
}

// joinStrings constructs a string from an slice of interface same as Println but
// without the terminal newline
func joinStrings(sep string, a ...interface{}) (o string) {
	for i := range a {
		o += fmt.Sprint(a[i])
		if i < len(a)-1 {
			o += sep
		}
	}
	return
}

// getLoc calls runtime.Caller and formats as expected by source code editors
// for terminal hyperlinks
func getLoc(skip int, subsystem string) (output string) {
	_, file, line, _ := runtime.Caller(skip)
	split := strings.Split(file, subsystem)
	if len(split) < 2 {
		output = fmt.Sprint(
			color.White.Sprint(subsystem),
			color.Gray.Sprint(file, ":", line),
		)
	} else {
		output = fmt.Sprint(
			color.White.Sprint(subsystem),
			color.Gray.Sprint(split[1], ":", line),
		)
	}
	return
}

// DirectionString is a helper function that returns a string that represents the direction of a connection (inbound or outbound).
func DirectionString(inbound bool) string {
	if inbound {
		return "inbound"
	}
	return "outbound"
}

// PickNoun returns the singular or plural form of a noun depending on n
func PickNoun(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
