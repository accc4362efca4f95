// Command mimeengine parses, composes and derives email messages: replies,
// forwards, redirects, digests and disposition notifications. Messages can be
// kept in a local store, imported from and exported to mbox files.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mjl-/sconf"
	"github.com/spf13/cobra"

	"github.com/mjl-/mimeengine/config"
	"github.com/mjl-/mimeengine/mdn"
	"github.com/mjl-/mimeengine/message"
	"github.com/mjl-/mimeengine/mlog"
	"github.com/mjl-/mimeengine/moxvar"
	"github.com/mjl-/mimeengine/respond"
	"github.com/mjl-/mimeengine/store"
)

var (
	pkglog = mlog.New("main", nil)

	configPath string
	loglevel   string
	sendable   bool
)

func xcheckf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Fatalf("%s: %s", msg, err)
}

func main() {
	log.SetFlags(0)

	root := &cobra.Command{
		Use:           "mimeengine",
		Short:         "Parse, compose and respond to email messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if loglevel != "" {
				level, ok := mlog.Levels[loglevel]
				if !ok {
					log.Fatalf("unknown loglevel %q", loglevel)
				}
				mlog.SetConfig(map[string]slog.Level{"": level})
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", envString("MIMEENGINE_CONFIG", "mimeengine.conf"), "configuration file, other config files are looked up in the same directory")
	root.PersistentFlags().StringVar(&loglevel, "loglevel", "", "if non-empty, this log level is set early in startup, overriding the configuration")

	root.AddCommand(
		cmdVersion(),
		cmdConfig(),
		cmdParse(),
		cmdThread(),
		cmdCTE(),
		cmdReply(),
		cmdForward(),
		cmdRedirect(),
		cmdDigest(),
		cmdMDN(),
		cmdStore(),
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func envString(k, def string) string {
	s := os.Getenv(k)
	if s == "" {
		return def
	}
	return s
}

// xconfig loads the configuration file, exiting on errors. Log levels from
// the configuration are applied unless overridden with -loglevel.
func xconfig() *config.Config {
	c, errs := config.ParseFile(configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			log.Printf("%s", err)
		}
		log.Fatalf("loading config file %s failed", configPath)
	}
	if loglevel == "" {
		mlog.SetConfig(c.Log)
	}
	return c
}

// xreadMessage reads and parses the message in file p, or stdin for "-".
func xreadMessage(conf *message.Config, p string) *message.Message {
	var buf []byte
	var err error
	if p == "-" {
		buf, err = io.ReadAll(os.Stdin)
	} else {
		buf, err = os.ReadFile(p)
	}
	xcheckf(err, "reading message")
	return message.Parse(conf, buf)
}

// xwriteMessage writes m to stdout. With -sendable, private header fields and
// Bcc are left out.
func xwriteMessage(m *message.Message) {
	var buf []byte
	if sendable {
		buf = m.AsSendableString()
	} else {
		buf = m.Bytes()
	}
	_, err := os.Stdout.Write(buf)
	xcheckf(err, "writing message")
}

func addSendableFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&sendable, "sendable", false, "write message as it would be sent, without private header fields and bcc")
}

func cmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(moxvar.Version)
		},
	}
}

func cmdConfig() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Describe and check the configuration file",
	}
	c.AddCommand(&cobra.Command{
		Use:   "describe",
		Short: "Prints an annotated empty configuration for use as mimeengine.conf",
		Long: `Prints an annotated empty configuration for use as mimeengine.conf.

The printed configuration needs modifications to make it valid. For example, it
may contain unfinished list items.
`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			err := sconf.Describe(os.Stdout, &config.Static{})
			xcheckf(err, "describing config")
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Parses the configuration file and prints any errors",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			conf := xconfig()
			fmt.Printf("config OK, %d identities\n", len(conf.Identities()))
		},
	})
	return c
}

func cmdParse() *cobra.Command {
	return &cobra.Command{
		Use:   "parse file",
		Short: "Parses a message and prints its header and body parts",
		Long: `Parses a message and prints its header and body parts.

Each body part is printed with its index, part id, media type, charset,
transfer encoding, size and file name. The file "-" reads from stdin.
`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			m := xreadMessage(nil, args[0])
			fmt.Print(m.HeaderAsString())
			fmt.Println()
			for i, bp := range m.BodyParts() {
				fmt.Printf("%d\t%s\t%s\t%s\t%s\t%d\t%q\n", i, bp.PartID, bp.MediaType(), bp.Charset, bp.CTE, len(bp.Body), bp.FileName())
			}
		},
	}
}

func cmdThread() *cobra.Command {
	return &cobra.Command{
		Use:   "thread file",
		Short: "Prints the hashes used to thread a message",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			m := xreadMessage(nil, args[0])
			fmt.Printf("msgid\t%s\t%s\n", m.MsgID(), m.MsgIDMD5())
			fmt.Printf("replyto\t%s\t%s\n", m.ReplyToID(), m.ReplyToIDMD5())
			fmt.Printf("replytoaux\t%s\n", m.ReplyToAuxIDMD5())
			fmt.Printf("subject\t%s\n", m.SubjectMD5())
			fmt.Printf("strippedsubject\t%s\n", m.StrippedSubjectMD5())
			fmt.Printf("references\t%s\n", m.GetRefStr())
		},
	}
}

func cmdCTE() *cobra.Command {
	var allow8Bit, signed bool
	c := &cobra.Command{
		Use:   "cte file",
		Short: "Analyzes a file and prints the suitable content transfer encodings",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			buf, err := os.ReadFile(args[0])
			xcheckf(err, "reading file")
			cf := message.AnalyzeCharFreq(buf)
			fmt.Printf("total %d, 8bit %d, nul %d, ctl %d, longest line %d, printable %.2f\n", cf.Total, cf.EightBit, cf.NUL, cf.CTL, cf.LineMax, cf.PrintableRatio())
			var l []string
			for _, cte := range cf.AllowedCTEs(allow8Bit, signed) {
				l = append(l, cte.String())
			}
			fmt.Println(strings.Join(l, " "))
		},
	}
	c.Flags().BoolVar(&allow8Bit, "8bit", false, "transport allows 8bit")
	c.Flags().BoolVar(&signed, "signed", false, "part will be signed")
	return c
}

func xengine() (*config.Config, *respond.Engine) {
	conf := xconfig()
	return conf, respond.NewEngine(conf.Message, conf, nil)
}

func cmdReply() *cobra.Command {
	var strategy string
	var opts respond.ReplyOptions
	c := &cobra.Command{
		Use:   "reply file",
		Short: "Prints a reply to a message",
		Long: `Prints a reply to a message.

Strategy selects the recipients: smart (reply to the list or the author as
appropriate), author, list, all or none.
`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			st, ok := respond.ParseStrategy(strategy)
			if !ok {
				log.Fatalf("unknown strategy %q", strategy)
			}
			conf, e := xengine()
			orig := xreadMessage(conf.Message, args[0])
			m, err := e.CreateReply(orig, st, opts)
			xcheckf(err, "creating reply")
			xwriteMessage(m)
		},
	}
	c.Flags().StringVar(&strategy, "strategy", "smart", "smart, author, list, all or none")
	c.Flags().StringVar(&opts.Selection, "selection", "", "text to quote instead of the message body")
	c.Flags().BoolVar(&opts.NoQuote, "noquote", false, "don't quote the original message")
	addSendableFlag(c)
	return c
}

func cmdForward() *cobra.Command {
	c := &cobra.Command{
		Use:   "forward file",
		Short: "Prints an inline forward of a message",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conf, e := xengine()
			orig := xreadMessage(conf.Message, args[0])
			m, err := e.CreateForward(orig)
			xcheckf(err, "creating forward")
			xwriteMessage(m)
		},
	}
	addSendableFlag(c)
	return c
}

func cmdRedirect() *cobra.Command {
	var to string
	c := &cobra.Command{
		Use:   "redirect file",
		Short: "Prints a message redirected to new recipients, with Resent-* header fields",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conf, e := xengine()
			orig := xreadMessage(conf.Message, args[0])
			m, err := e.CreateRedirect(orig, to)
			xcheckf(err, "creating redirect")
			xwriteMessage(m)
		},
	}
	c.Flags().StringVar(&to, "to", "", "recipients, as address list")
	addSendableFlag(c)
	return c
}

func cmdDigest() *cobra.Command {
	c := &cobra.Command{
		Use:   "digest file ...",
		Short: "Prints a MIME digest forwarding the messages",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conf, e := xengine()
			var origs []*message.Message
			for _, p := range args {
				origs = append(origs, xreadMessage(conf.Message, p))
			}
			m, err := e.ForwardDigest(origs)
			xcheckf(err, "creating digest")
			xwriteMessage(m)
		},
	}
	addSendableFlag(c)
	return c
}

// stdinAsker asks the user on the terminal how to react to a disposition
// notification request.
type stdinAsker struct {
	r *bufio.Reader
}

var reasonTexts = map[mdn.Reason]string{
	mdn.ReasonNormalAsk:          "The sender requested a notification that you have read the message.",
	mdn.ReasonUnknownOption:      "The sender requires handling of an option for the notification that is not supported.",
	mdn.ReasonMultipleAddresses:  "The notification would go to multiple addresses.",
	mdn.ReasonReturnPathEmpty:    "The message has no return path.",
	mdn.ReasonReturnPathMismatch: "The notification address differs from the return path.",
}

func (a stdinAsker) AskMDN(reason mdn.Reason) mdn.Policy {
	fmt.Fprintf(os.Stderr, "%s\nsend, deny, ignore or ask later? ", reasonTexts[reason])
	line, err := a.r.ReadString('\n')
	if err != nil && line == "" {
		return mdn.Ask
	}
	p, ok := mdn.ParsePolicy(strings.TrimSpace(line))
	if !ok {
		return mdn.Ask
	}
	return p
}

func cmdMDN() *cobra.Command {
	var action, disposition string
	var ask bool
	var modifiers []string
	c := &cobra.Command{
		Use:   "mdn file",
		Short: "Prints a message disposition notification for a message",
		Long: `Prints a message disposition notification for a message, if the configured
policy allows one to be sent. The resulting state is printed to stderr.

With -ask, the user is asked on the terminal when the policy is "ask" or the
request is suspicious. Without, such notifications remain pending.
`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conf := xconfig()
			m := xreadMessage(conf.Message, args[0])
			var asker mdn.Asker
			if ask {
				asker = stdinAsker{bufio.NewReader(os.Stdin)}
			}
			var mods []mdn.Modifier
			for _, s := range modifiers {
				mods = append(mods, mdn.Modifier(s))
			}
			g := mdn.NewGenerator(conf.MDN, conf.Message, conf, asker)
			r, err := g.Create(m, xactionMode(action), mdn.DispositionType(disposition), ask, mods)
			xcheckf(err, "creating notification")
			fmt.Fprintln(os.Stderr, r.State)
			if r.Message != nil {
				xwriteMessage(r.Message)
			}
		},
	}
	c.Flags().StringVar(&action, "action", "manual", "manual or automatic")
	c.Flags().StringVar(&disposition, "disposition", string(mdn.DispositionDisplayed), "displayed, deleted, dispatched, processed, denied or failed")
	c.Flags().StringSliceVar(&modifiers, "modifier", nil, "disposition modifiers, e.g. error or expired")
	c.Flags().BoolVar(&ask, "ask", false, "ask on the terminal when needed")
	addSendableFlag(c)
	return c
}

func xactionMode(s string) mdn.ActionMode {
	switch s {
	case "manual":
		return mdn.ManualAction
	case "automatic":
		return mdn.AutomaticAction
	}
	log.Fatalf("unknown action %q", s)
	return ""
}

// xfolder opens the store in the data directory and returns the folder.
func xfolder(conf *config.Config, name string) (*store.Folder, func()) {
	p := filepath.Join(conf.DataDir, "store.db")
	db, err := store.OpenDB(context.Background(), p)
	xcheckf(err, "open store")
	return store.NewFolder(db, name, conf.Message), func() {
		err := db.Close()
		pkglog.Check(err, "closing store")
	}
}

// xstoredMessage returns the message with serial from the folder, with just
// its header, as listed, and completes it.
func xstoredMessage(ctx context.Context, f *store.Folder, serial string) *message.Message {
	v, err := strconv.ParseUint(serial, 10, 64)
	xcheckf(err, "parsing serial")
	l, err := f.Headers(ctx)
	xcheckf(err, "listing messages")
	for _, m := range l {
		if m.Serial == v {
			err := message.EnsureComplete(ctx, f, m)
			xcheckf(err, "fetching message")
			return m
		}
	}
	log.Fatalf("no message with serial %d in folder %s", v, f.Name)
	return nil
}

func cmdStore() *cobra.Command {
	c := &cobra.Command{
		Use:   "store",
		Short: "Manage messages in the local store",
	}

	c.AddCommand(&cobra.Command{
		Use:   "import folder mbox",
		Short: "Imports messages from an mbox file into a folder",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			conf := xconfig()
			f, closeDB := xfolder(conf, args[0])
			defer closeDB()
			mf, err := os.Open(args[1])
			xcheckf(err, "open mbox")
			defer mf.Close()
			n, err := f.ImportMbox(cmd.Context(), bufio.NewReader(mf))
			xcheckf(err, "importing mbox after %d messages", n)
			fmt.Printf("%d messages imported\n", n)
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "export folder",
		Short: "Writes the messages of a folder to stdout in mbox format",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conf := xconfig()
			f, closeDB := xfolder(conf, args[0])
			defer closeDB()
			w := bufio.NewWriter(os.Stdout)
			_, err := f.ExportMbox(cmd.Context(), w)
			xcheckf(err, "exporting mbox")
			err = w.Flush()
			xcheckf(err, "flush")
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "list folder",
		Short: "Lists the messages in a folder",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			conf := xconfig()
			f, closeDB := xfolder(conf, args[0])
			defer closeDB()
			l, err := f.Headers(cmd.Context())
			xcheckf(err, "listing messages")
			for _, m := range l {
				sm, err := f.Get(cmd.Context(), m.Serial)
				xcheckf(err, "get message")
				fmt.Printf("%d\t%s\t%s\t%s\n", m.Serial, flagString(sm.Flags), m.MDNSentState, m.Subject())
			}
		},
	})

	var strategy string
	var mark bool
	reply := &cobra.Command{
		Use:   "reply folder serial",
		Short: "Prints a reply to a stored message, optionally marking the original as answered",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			st, ok := respond.ParseStrategy(strategy)
			if !ok {
				log.Fatalf("unknown strategy %q", strategy)
			}
			conf, e := xengine()
			f, closeDB := xfolder(conf, args[0])
			defer closeDB()
			orig := xstoredMessage(cmd.Context(), f, args[1])
			m, err := e.CreateReply(orig, st, respond.ReplyOptions{})
			xcheckf(err, "creating reply")
			xwriteMessage(m)
			if mark {
				err := f.MarkLinks(cmd.Context(), m)
				xcheckf(err, "marking original")
			}
		},
	}
	reply.Flags().StringVar(&strategy, "strategy", "smart", "smart, author, list, all or none")
	reply.Flags().BoolVar(&mark, "mark", false, "mark the original as answered")
	addSendableFlag(reply)
	c.AddCommand(reply)

	var disposition string
	mdnCmd := &cobra.Command{
		Use:   "mdn folder serial",
		Short: "Prints a disposition notification for a stored message and saves the notification state",
		Long: `Prints a disposition notification for a stored message and saves the
notification state, so at most one notification is generated per message.
`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			conf := xconfig()
			f, closeDB := xfolder(conf, args[0])
			defer closeDB()
			m := xstoredMessage(cmd.Context(), f, args[1])
			g := mdn.NewGenerator(conf.MDN, conf.Message, conf, nil)
			r, err := g.Create(m, mdn.ManualAction, mdn.DispositionType(disposition), false, nil)
			xcheckf(err, "creating notification")
			err = f.SaveMDNState(cmd.Context(), m)
			xcheckf(err, "saving notification state")
			fmt.Fprintln(os.Stderr, r.State)
			if r.Message != nil {
				xwriteMessage(r.Message)
			}
		},
	}
	mdnCmd.Flags().StringVar(&disposition, "disposition", string(mdn.DispositionDisplayed), "displayed, deleted, dispatched, processed, denied or failed")
	addSendableFlag(mdnCmd)
	c.AddCommand(mdnCmd)

	return c
}

func flagString(f store.Flags) string {
	var b strings.Builder
	for _, x := range []struct {
		set bool
		c   byte
	}{{f.Seen, 'S'}, {f.Answered, 'A'}, {f.Forwarded, 'F'}, {f.Deleted, 'D'}} {
		if x.set {
			b.WriteByte(x.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
