// Package shell is the interactive terminal front end for one device
// session. It shows the currency converter until the PIN is entered and
// the swap button pressed, and the safety surface after that.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/atinyakov/CovertKeeper/internal/app"
	"github.com/atinyakov/CovertKeeper/internal/dispatch"
	"github.com/atinyakov/CovertKeeper/internal/mode"
	"github.com/atinyakov/CovertKeeper/internal/models"
	"github.com/atinyakov/CovertKeeper/internal/sos"
)

const (
	decoyHelp  = "Commands: amount <n>, pair <from> <to>, rates, swap, sos press|release, background, foreground, quit"
	setupHelp  = "Commands: setup [pin] [confirm], quit"
	covertHelp = "Commands: status, location, sos press|release, walk, leave, checkin, " +
		"notes [add|show|edit|delete <id>], contacts [add <name> <phone>|remove <n>], " +
		"settings, set <name|notes|append|theme|pin> <value>, exit, background, foreground, quit"
)

// Shell runs the read-eval-print loop over an app.Session.
type Shell struct {
	prompt  *prompter
	session *app.Session

	mu  sync.Mutex
	out io.Writer
}

// New creates a Shell reading commands from in and writing to out.
func New(in io.Reader, out io.Writer) *Shell {
	s := &Shell{out: out}
	s.prompt = newPrompter(in, &lockedWriter{s: s})
	return s
}

// Bind attaches the session the shell drives.
func (s *Shell) Bind(session *app.Session) {
	s.session = session
}

// Alert prints an SOS result. It is the session's OnAlert callback and may
// run on a timer goroutine.
func (s *Shell) Alert(res app.Result) {
	s.printf("\n[%s] %s\n", res.Alert.Title, res.Alert.Message)
}

// CheckInPrompt announces an open check-in window.
func (s *Shell) CheckInPrompt() {
	s.printf("\nAre you okay? Type 'checkin' within %s or help will be called.\n", sos.CheckInWindow)
}

// Run starts the session and processes commands until quit or end of input.
func (s *Shell) Run(ctx context.Context, session *app.Session) {
	s.Bind(session)
	s.session.Start(ctx)
	if !s.session.Persistent() {
		s.printf("Offline: changes will not be saved.\n")
	}
	if s.session.Mode() == mode.Setup {
		s.printf("Welcome. Create a PIN to finish setup.\n")
	}

	for {
		s.printf("%s> ", s.session.Mode())
		line, ok := s.prompt.line()
		if !ok {
			return
		}
		if s.Exec(ctx, line) {
			return
		}
	}
}

// Exec runs one command line and reports whether the shell should quit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "quit":
		s.session.HandleLifecycle(mode.Background)
		s.printf("Bye\n")
		return true
	case "background":
		s.session.HandleLifecycle(mode.Background)
		return false
	case "foreground":
		s.session.HandleLifecycle(mode.Active)
		return false
	}

	switch s.session.Mode() {
	case mode.Setup:
		s.execSetup(ctx, args)
	case mode.Decoy:
		s.execDecoy(ctx, args)
	case mode.Covert:
		s.execCovert(ctx, args)
	}
	return false
}

func (s *Shell) execSetup(ctx context.Context, args []string) {
	switch args[0] {
	case "setup":
		pin := s.prompt.argOrAsk(args, 1, "Create PIN (4-6 digits): ")
		confirm := s.prompt.argOrAsk(args, 2, "Confirm PIN: ")
		if err := s.session.CompleteSetup(ctx, pin, confirm); err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		s.printf("Setup complete.\n")
		s.printConverter()
	default:
		s.printf("%s\n", setupHelp)
	}
}

func (s *Shell) execDecoy(ctx context.Context, args []string) {
	conv := s.session.Converter()
	switch args[0] {
	case "amount":
		if len(args) < 2 {
			s.printf("Usage: amount <n>\n")
			return
		}
		conv.SetAmount(args[1])
		s.printConverter()
	case "pair":
		if len(args) < 3 {
			s.printf("Usage: pair <from> <to>\n")
			return
		}
		if err := conv.SetPair(args[1], args[2]); err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		s.printConverter()
	case "rates":
		s.printf("%s\n", strings.Join(mode.Currencies(), " "))
	case "swap":
		m, err := s.session.Swap(ctx)
		if err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		if m == mode.Covert {
			s.printf("%s\n", covertHelp)
			return
		}
		s.printConverter()
	case "sos":
		s.execSOS(args, s.session.MainSOS)
	default:
		s.printf("%s\n", decoyHelp)
	}
}

func (s *Shell) execCovert(ctx context.Context, args []string) {
	switch args[0] {
	case "status":
		s.printf("mode: %s, walking home: %t, saved: %t\n", s.session.Mode(), s.session.Walking(), s.session.Persistent())
	case "location":
		loc := s.session.CurrentLocation(ctx)
		s.printf("%s\n", loc.DisplayAddress)
		if loc.DetailedAddress != "" && loc.DetailedAddress != loc.DisplayAddress {
			s.printf("%s\n", loc.DetailedAddress)
		}
	case "sos":
		control := s.session.MainSOS
		if s.session.Walking() {
			control = s.session.WalkSOS
		}
		s.execSOS(args, control)
	case "walk":
		if err := s.session.EnterWalkingHome(); err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		s.printf("Walking home. You will be asked to check in every %s.\n", sos.CheckInInterval)
	case "leave":
		s.session.LeaveWalkingHome()
	case "checkin":
		if s.session.CheckIn.Confirm() {
			s.printf("Checked in.\n")
		} else {
			s.printf("No check-in pending.\n")
		}
	case "exit":
		s.session.Exit()
		s.printConverter()
	case "notes":
		s.execNotes(ctx, args[1:])
	case "contacts":
		s.execContacts(ctx, args[1:])
	case "settings":
		s.printSettings(ctx)
	case "set":
		s.execSet(ctx, args[1:])
	default:
		s.printf("%s\n", covertHelp)
	}
}

func (s *Shell) execSOS(args []string, control *sos.Control) {
	if len(args) < 2 {
		s.printf("Usage: sos press|release\n")
		return
	}
	switch args[1] {
	case "press":
		control.Press()
		s.printf("Hold for %s to call for help. Type 'sos release' to cancel.\n", sos.DefaultDwell)
	case "release":
		control.Release()
	default:
		s.printf("Usage: sos press|release\n")
	}
}

func (s *Shell) execNotes(ctx context.Context, args []string) {
	profiles := s.session.Profiles()
	deviceID := s.session.DeviceID()

	if len(args) == 0 {
		notes, err := profiles.ListNotes(ctx, deviceID)
		if err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		if len(notes) == 0 {
			s.printf("No notes.\n")
		}
		for _, n := range notes {
			s.printf("%s  %s  (%s)\n", n.ID, n.Title, n.LastEditedAt.Local().Format("Jan 2 15:04"))
		}
		return
	}

	switch args[0] {
	case "add":
		title, _ := s.prompt.ask("Title: ")
		content, _ := s.prompt.ask("Content: ")
		n, err := profiles.CreateNote(ctx, deviceID, title, content)
		if err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		s.printf("Saved %s\n", n.ID)
	case "show", "edit", "delete":
		if len(args) < 2 {
			s.printf("Usage: notes %s <id>\n", args[0])
			return
		}
		s.execNote(ctx, args[0], args[1])
	default:
		s.printf("Usage: notes [add|show|edit|delete <id>]\n")
	}
}

func (s *Shell) execNote(ctx context.Context, action, id string) {
	profiles := s.session.Profiles()
	deviceID := s.session.DeviceID()

	switch action {
	case "show":
		n, err := profiles.GetNote(ctx, deviceID, id)
		if err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		s.printf("%s\n%s\n", n.Title, n.Content)
	case "edit":
		n, err := profiles.GetNote(ctx, deviceID, id)
		if err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		title, _ := s.prompt.ask(fmt.Sprintf("Title [%s]: ", n.Title))
		if title == "" {
			title = n.Title
		}
		content, _ := s.prompt.ask("Content (empty keeps current): ")
		if content == "" {
			content = n.Content
		}
		if _, err := profiles.UpdateNote(ctx, deviceID, id, title, content); err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		s.printf("Saved %s\n", id)
	case "delete":
		if err := profiles.DeleteNote(ctx, deviceID, id); err != nil {
			s.printf("Error: %v\n", err)
			return
		}
		s.printf("Deleted %s\n", id)
	}
}

func (s *Shell) execContacts(ctx context.Context, args []string) {
	profiles := s.session.Profiles()
	deviceID := s.session.DeviceID()

	var (
		contacts []models.EmergencyContact
		err      error
	)
	switch {
	case len(args) == 0:
		var p *models.UserProfile
		p, err = profiles.GetProfile(ctx, deviceID)
		if p != nil {
			contacts = p.EmergencyContacts
		}
	case args[0] == "add" && len(args) >= 3:
		name := strings.Join(args[1:len(args)-1], " ")
		contacts, err = profiles.AddContact(ctx, deviceID, models.EmergencyContact{Name: name, Phone: args[len(args)-1]})
	case args[0] == "remove" && len(args) == 2:
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			s.printf("Usage: contacts remove <n>\n")
			return
		}
		contacts, err = profiles.RemoveContact(ctx, deviceID, n-1)
	default:
		s.printf("Usage: contacts [add <name> <phone>|remove <n>]\n")
		return
	}
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	if len(contacts) == 0 {
		s.printf("No emergency contacts.\n")
	}
	for i, c := range contacts {
		s.printf("%d. %s %s\n", i+1, c.Name, dispatch.FormatPhoneNumber(c.Phone))
	}
}

func (s *Shell) printSettings(ctx context.Context) {
	p, err := s.session.GetProfile(ctx)
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	if p == nil {
		s.printf("No profile.\n")
		return
	}
	s.printf("name: %s\nnotes: %s\nappend location: %t\ntheme: %s\ncontacts: %d\n",
		p.Name, p.NotesForEmergency, p.AppendLocation, p.Theme, len(p.EmergencyContacts))
}

var errSetUsage = errors.New("usage: set <name|notes|append|theme|pin> <value>")

func (s *Shell) execSet(ctx context.Context, args []string) {
	if len(args) < 2 {
		s.printf("%v\n", errSetUsage)
		return
	}
	profiles := s.session.Profiles()
	deviceID := s.session.DeviceID()
	value := strings.Join(args[1:], " ")

	var err error
	switch args[0] {
	case "name":
		err = profiles.SetName(ctx, deviceID, value)
	case "notes":
		err = profiles.SetEmergencyNotes(ctx, deviceID, value)
	case "append":
		var on bool
		on, err = strconv.ParseBool(value)
		if err == nil {
			err = profiles.SetAppendLocation(ctx, deviceID, on)
		}
	case "theme":
		err = profiles.SetTheme(ctx, deviceID, models.Theme(value))
	case "pin":
		err = profiles.SetPIN(ctx, deviceID, value)
	default:
		err = errSetUsage
	}
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("Saved.\n")
}

func (s *Shell) printConverter() {
	conv := s.session.Converter()
	from, to := conv.Pair()
	if r, ok := conv.Result(); ok {
		s.printf("%s %s = %.2f %s\n", conv.Amount(), from, r, to)
		return
	}
	s.printf("%s %s = - %s\n", conv.Amount(), from, to)
}

func (s *Shell) printf(format string, a ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, a...)
}

// lockedWriter serializes prompt output with asynchronous alerts.
type lockedWriter struct{ s *Shell }

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	return w.s.out.Write(p)
}
