package console

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jrsteele09/gov-console/controller"
	"github.com/jrsteele09/gov-console/gate"
	"github.com/jrsteele09/gov-console/sessionstore"
	"github.com/pkg/errors"
)

// PendingRoute lists companies awaiting approval.
const PendingRoute = "/gov/pending"

// Company is the part of a pending application shown by the console.
type Company struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RegID    string `json:"regId"`
	Type     string `json:"type"`
	Location string `json:"location"`
	Status   string `json:"status"`
}

// Login signs in and reports where the user lands. from is the sign-in
// location the gate redirected to, or empty.
func (a *App) Login(ctx context.Context, w io.Writer, userID, password, from string) error {
	if err := a.Controller.Login(ctx, userID, password); err != nil {
		return err
	}
	user, _ := a.Controller.CurrentUser()
	fmt.Fprintf(w, "Signed in as %s (%s)\n", user.DisplayName, user.LoginID)
	fmt.Fprintf(w, "Continue to %s\n", a.Gate.ReturnTarget(from))
	return nil
}

func (a *App) Logout(ctx context.Context, w io.Writer) error {
	if err := a.Controller.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "Signed out")
	return nil
}

// Status prints the restored session.
func (a *App) Status(w io.Writer) {
	state := a.Controller.State()
	fmt.Fprintf(w, "Status: %s\n", state.Status)
	if !state.IsAuthenticated() {
		return
	}
	s := state.Session
	fmt.Fprintf(w, "User:   %s (%s)\n", s.User.DisplayName, s.User.LoginID)
	if s.User.Role != "" {
		fmt.Fprintf(w, "Role:   %s\n", s.User.Role)
	}
	fmt.Fprintf(w, "Issued: %s\n", s.IssuedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Renews: %t\n", s.HasRefreshToken())
}

// Open prints what the console does when path is requested.
func (a *App) Open(w io.Writer, path string) gate.Decision {
	d := a.Gate.Check(a.Controller.State(), path)
	switch d.Action {
	case gate.ActionRedirect:
		fmt.Fprintf(w, "redirect %s\n", d.Location)
	default:
		fmt.Fprintf(w, "%s %s\n", d.Action, path)
	}
	return d
}

// Pending lists companies awaiting approval. An authorization failure signs
// the console out.
func (a *App) Pending(ctx context.Context, w io.Writer) ([]Company, error) {
	var companies []Company
	if err := a.API.GetJSON(ctx, PendingRoute, &companies); err != nil {
		return nil, err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tREG ID\tTYPE\tLOCATION")
	for _, c := range companies {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.RegID, c.Type, c.Location)
	}
	return companies, tw.Flush()
}

// Watch follows the session document, adopting sign-ins and sign-outs made
// by other console processes until ctx is done.
func (a *App) Watch(ctx context.Context, w io.Writer) error {
	if a.filePath == "" {
		return errors.New("[App.Watch] watching requires the file store backend")
	}

	unsubscribe := a.Controller.Subscribe(func(ev controller.Event) {
		if ev.Cause != controller.CauseSync {
			return
		}
		if ev.State.IsAuthenticated() {
			user := ev.State.Session.User
			fmt.Fprintf(w, "%s: %s (%s)\n", ev.State.Status, user.DisplayName, user.LoginID)
			return
		}
		fmt.Fprintf(w, "%s\n", ev.State.Status)
	})
	defer unsubscribe()

	return sessionstore.WatchFile(ctx, a.filePath, a.Controller.Sync)
}
