package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/DeBankDeFi/tahani/pkg/db"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) execCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec [FILE]",
		Short: "Run store operations line by line from FILE or stdin",
		Long: `Each line is "[NAME =] OP ARG...". OP is a tahani function such as open,
put or seek-to-first, with or without the "tahani/" prefix. Arguments are words,
Go-quoted strings, or $NAME for an earlier result. With --store the store is
opened up front as $db. Results are printed, handles still open at the end are
closed. "ops $NAME" lists the operations a result answers, plain "ops" the
functions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, ferr := os.Open(args[0])
				if ferr != nil {
					return errors.WithStack(ferr)
				}
				defer f.Close()
				r = f
			}

			s := &session{app: a, vars: make(map[string]interface{}), out: cmd.OutOrStdout()}
			defer s.closeAll()
			if a.flag.Store != "" {
				d, err := a.open(contextOf(cmd), a.flag.Store, a.options())
				if err != nil {
					return err
				}
				s.vars["db"] = d
			}
			return s.run(r)
		},
	}
}

type session struct {
	app  *app
	vars map[string]interface{}
	out  io.Writer
}

func (s *session) run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := s.exec(text); err != nil {
			return errors.Wrapf(err, "line %d", line)
		}
	}
	return errors.WithStack(sc.Err())
}

func (s *session) exec(text string) error {
	words, err := tokenize(text)
	if err != nil {
		return err
	}
	var name string
	if len(words) >= 3 && words[1].raw == "=" {
		name = words[0].raw
		words = words[2:]
	}
	if len(words) == 0 {
		return errors.New("missing operation")
	}

	op := strings.TrimPrefix(words[0].raw, db.Namespace+"/")
	if op == "ops" {
		return s.listOps(words[1:])
	}
	args := make([]interface{}, 0, len(words)-1)
	for _, w := range words[1:] {
		v, err := s.resolve(w)
		if err != nil {
			return err
		}
		args = append(args, v)
	}
	// open without options uses the command line ones
	if op == "open" && len(args) == 1 {
		args = append(args, s.app.options())
	}

	out, err := db.CallFunc(db.Namespace+"/"+op, args...)
	if err != nil {
		return err
	}
	if name != "" {
		s.vars[name] = out
	}
	fmt.Fprintln(s.out, format(out))
	return nil
}

func (s *session) resolve(w word) (interface{}, error) {
	if w.quoted || !strings.HasPrefix(w.raw, "$") {
		return w.raw, nil
	}
	v, ok := s.vars[w.raw[1:]]
	if !ok {
		return nil, errors.Errorf("undefined %s", w.raw)
	}
	return v, nil
}

// listOps prints the operations of a value, or the namespace functions.
func (s *session) listOps(words []word) error {
	var target interface{}
	if len(words) > 0 {
		v, err := s.resolve(words[0])
		if err != nil {
			return err
		}
		target = v
	}
	fmt.Fprintln(s.out, strings.Join(db.Operations(target), " "))
	return nil
}

// closeAll closes the handles the session still holds, which also releases
// their snapshots and iterators.
func (s *session) closeAll() {
	names := make([]string, 0, len(s.vars))
	for name := range s.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if d, ok := s.vars[name].(*db.DB); ok {
			d.Close()
		}
	}
}

func format(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case []byte:
		return strconv.Quote(string(v))
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

type word struct {
	raw    string
	quoted bool
}

// tokenize splits a line on spaces. Words starting with a double quote are
// Go string literals.
func tokenize(line string) ([]word, error) {
	var words []word
	for {
		line = strings.TrimLeft(line, " \t")
		if line == "" {
			return words, nil
		}
		if line[0] == '"' {
			lit, err := strconv.QuotedPrefix(line)
			if err != nil {
				return nil, errors.Errorf("bad string literal: %s", line)
			}
			s, _ := strconv.Unquote(lit)
			words = append(words, word{raw: s, quoted: true})
			line = line[len(lit):]
			continue
		}
		end := strings.IndexAny(line, " \t")
		if end < 0 {
			end = len(line)
		}
		words = append(words, word{raw: line[:end]})
		line = line[end:]
	}
}
