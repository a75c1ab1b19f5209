package debug

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hitzhangjie/bdbg/pkg/config"
	"github.com/hitzhangjie/bdbg/pkg/logflags"
	"github.com/hitzhangjie/bdbg/pkg/target"
)

const (
	cmdGroupAnnotation = "cmd_group_annotation"

	cmdGroupBreakpoints = "1-breaks"
	cmdGroupCtrlFlow    = "2-execute"
	cmdGroupInfo        = "3-info"
	cmdGroupOthers      = "4-other"
	cmdGroupCobra       = "other"

	cmdGroupDelimiter = "-"

	descShort = "bdbg interactive debugging commands"
)

var debugRootCmd = &cobra.Command{
	Use:           "help [command]",
	Short:         descShort,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	CurrentSession *DebugSession
)

// lineReader is the prompt the session reads commands from.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// plainReader reads commands from a pipe or file, no line editing.
type plainReader struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (r *plainReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *plainReader) AppendHistory(string) {}

func (r *plainReader) Close() error { return nil }

// DebugSession 调试会话
type DebugSession struct {
	done   chan bool
	prefix string
	root   *cobra.Command
	reader lineReader
	last   string
	cmds   *trie.Trie

	defers []func()

	proc *target.Process
	bp   *target.Breakpoint
	regs *target.Registers
	mem  *target.Memory
	cfg  config.Config
	log  *logrus.Entry

	out    io.Writer
	errOut io.Writer

	// stopped by our own trap, pc is one trap width past bp.Addr
	atBreakpoint bool
}

// NewDebugSession 创建一个debug专用的交互管理器
func NewDebugSession(proc *target.Process, cfg config.Config) *DebugSession {

	fn := func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()

		// 描述信息
		fmt.Fprintln(out, cmd.Short)
		fmt.Fprintln(out)

		// 使用信息
		fmt.Fprintln(out, cmd.Use)
		fmt.Fprintln(out, cmd.Flags().FlagUsages())

		// 命令分组
		if cmd == debugRootCmd {
			fmt.Fprintln(out, helpMessageByGroups(cmd))
		}
	}
	debugRootCmd.SetHelpFunc(fn)

	debugRootCmd.InitDefaultHelpCmd()

	s := &DebugSession{
		done:   make(chan bool),
		prefix: cfg.Prompt,
		root:   debugRootCmd,
		last:   "",
		cmds:   commandTrie(debugRootCmd),
		proc:   proc,
		bp:     proc.NewBreakpoint(),
		regs:   proc.Registers(),
		mem:    proc.Memory(),
		cfg:    cfg,
		log:    logflags.SessionLogger(),
		out:    os.Stdout,
		errOut: os.Stderr,
	}

	s.reader = newLineReader(s.completer)
	return s
}

var newLineReader = func(completer liner.Completer) lineReader {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return &plainReader{sc: bufio.NewScanner(os.Stdin), out: os.Stdout}
	}
	l := liner.NewLiner()
	l.SetCompleter(completer)
	l.SetTabCompletionStyle(liner.TabPrints)
	return l
}

// Start runs the command loop until exit, end of input or the tracee is gone.
func (s *DebugSession) Start() {
	s.root.SetOut(s.out)
	s.root.SetErr(s.errOut)

	defer func() {
		for idx := len(s.defers) - 1; idx >= 0; idx-- {
			s.defers[idx]()
		}
	}()

	for {
		select {
		case <-s.done:
			s.reader.Close()
			return
		default:
		}

		txt, err := s.reader.Prompt(s.prefix)
		if err != nil {
			if err != io.EOF {
				s.log.WithError(err).Debug("read command")
			}
			fmt.Fprintln(s.out)
			s.Stop()
			continue
		}

		txt = strings.TrimSpace(txt)
		if len(txt) != 0 {
			s.last = txt
			s.reader.AppendHistory(txt)
		} else {
			txt = s.last
		}
		if txt == "" {
			continue
		}

		if err := s.execute(txt); err != nil {
			fmt.Fprintf(s.errOut, "[ERROR] %v\n", err)
		}

		if s.proc.Exited() && !s.stopped() {
			fmt.Fprintln(s.out, "Target process is no longer running, ending debug session")
			s.Stop()
		}
	}
}

func (s *DebugSession) execute(txt string) error {
	args, err := splitCommandLine(txt)
	if err != nil {
		return err
	}
	s.log.Debugf("command %q", args)

	s.root.SetArgs(args)
	cmd, err := s.root.ExecuteC()

	// cobra keeps parsed flag values between runs
	if cmd != nil {
		if f := cmd.Flags().Lookup("help"); f != nil && f.Changed {
			f.Value.Set("false")
			f.Changed = false
		}
	}
	return err
}

func (s *DebugSession) AtExit(fn func()) *DebugSession {
	s.defers = append(s.defers, fn)
	return s
}

func (s *DebugSession) Stop() {
	if !s.stopped() {
		close(s.done)
	}
}

func (s *DebugSession) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// splitCommandLine splits txt with shell quoting rules.
func splitCommandLine(txt string) ([]string, error) {
	v, err := argv.Argv(txt,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 || len(v[0]) == 0 {
		return nil, fmt.Errorf("illegal command line '%s'", txt)
	}
	return v[0], nil
}

// commandTrie indexes the names and aliases of the session commands.
func commandTrie(root *cobra.Command) *trie.Trie {
	t := trie.New()
	for _, c := range root.Commands() {
		t.Add(c.Name(), c)
		for _, alias := range c.Aliases {
			t.Add(alias, c)
		}
	}
	return t
}

func (s *DebugSession) completer(line string) []string {
	// only the command word is completed
	if strings.ContainsAny(line, " \t") {
		return nil
	}
	cmds := s.cmds.PrefixSearch(line)
	sort.Strings(cmds)
	return cmds
}

// helpMessageByGroups 将各个命令按照分组归类，再展示帮助信息
func helpMessageByGroups(cmd *cobra.Command) string {

	// key:group, val:sorted commands in same group
	groups := map[string][]string{}
	for _, c := range cmd.Commands() {
		// 如果没有指定命令分组，放入other组
		groupName, ok := c.Annotations[cmdGroupAnnotation]
		if !ok {
			groupName = cmdGroupCobra
		}

		name := c.Name()
		if len(c.Aliases) != 0 {
			name += "|" + strings.Join(c.Aliases, "|")
		}
		groupCmds := append(groups[groupName], fmt.Sprintf("  %-16s:%s", name, c.Short))
		sort.Strings(groupCmds)

		groups[groupName] = groupCmds
	}

	if len(groups[cmdGroupCobra]) != 0 {
		groups[cmdGroupOthers] = append(groups[cmdGroupOthers], groups[cmdGroupCobra]...)
	}
	delete(groups, cmdGroupCobra)

	// 按照分组名进行排序
	groupNames := []string{}
	for k := range groups {
		groupNames = append(groupNames, k)
	}
	sort.Strings(groupNames)

	// 按照group分组，并对组内命令进行排序
	buf := bytes.Buffer{}
	for _, groupName := range groupNames {
		commands := groups[groupName]

		group := strings.Split(groupName, cmdGroupDelimiter)[1]
		buf.WriteString(fmt.Sprintf("- [%s]\n", group))

		for _, cmd := range commands {
			buf.WriteString(fmt.Sprintf("%s\n", cmd))
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// session returns the running session, commands fail without one.
func session() (*DebugSession, error) {
	if CurrentSession == nil || CurrentSession.proc == nil {
		return nil, errors.New("please launch or attach to a process first")
	}
	return CurrentSession, nil
}
