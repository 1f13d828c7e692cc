package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/soaringjerry/satisfacao/internal/models"
)

// runInit prepares a device. Open has already migrated the schema and provisioned the
// bootstrap administrator, so this reports that and seeds the example questionnaires.
func (a *app) runInit(ctx context.Context, args []string) error {
	fs := a.newFlags("init")
	seed := fs.Bool("seed", a.cfg.Seed.Examples, "create the example questionnaires on an empty database")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if a.store.CreatedDefaultAdmin() {
		fmt.Fprintln(a.out, "Administrador padrão criado (admin / admin123). Altere a senha com 'satisfacao passwd'.")
	}
	if *seed {
		created, err := a.authoring.SeedExamples(ctx)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintln(a.out, "Questionários de exemplo criados.")
		}
	}
	fmt.Fprintf(a.out, "Banco de dados pronto em %s\n", a.cfg.Database.Path)
	return nil
}

func (a *app) runList(ctx context.Context, args []string) error {
	fs := a.newFlags("list")
	activeOnly := fs.Bool("active", false, "only questionnaires open to respondents")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	entries, err := a.stats.Dashboard(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tATIVO\tPERGUNTAS\tRESPOSTAS\tTÍTULO")
	for _, e := range entries {
		if *activeOnly && !e.Questionnaire.IsActive {
			continue
		}
		active := "não"
		if e.Questionnaire.IsActive {
			active = "sim"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", e.Questionnaire.ID, active, e.QuestionCount, e.TotalResponses, e.Questionnaire.Title)
	}
	return tw.Flush()
}

func (a *app) runStats(ctx context.Context, args []string) error {
	fs := a.newFlags("stats")
	qid := fs.Int64("q", 0, "questionnaire id")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	st, err := a.stats.ResponseStatistics(ctx, *qid)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Respostas: %d\nIdade média: %.1f\nIdade mínima: %d\nIdade máxima: %d\n",
		st.TotalResponses, st.AvgAge, st.MinAge, st.MaxAge)
	return nil
}

func (a *app) runReport(ctx context.Context, args []string) error {
	fs := a.newFlags("report")
	qid := fs.Int64("q", 0, "questionnaire id")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	rep, err := a.stats.QuestionnaireReport(ctx, *qid)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintf(a.out, "%s\n%d respostas, idade média %.1f (%d-%d)\n",
		rep.Questionnaire.Title, rep.Statistics.TotalResponses, rep.Statistics.AvgAge, rep.Statistics.MinAge, rep.Statistics.MaxAge)
	for i, qr := range rep.Questions {
		fmt.Fprintf(a.out, "\n%d. %s (%d respostas)\n", i+1, qr.Question.Text, qr.Answered)
		if qr.AverageRating != nil {
			fmt.Fprintf(a.out, "   média: %.2f estrelas\n", *qr.AverageRating)
		}
		for _, t := range qr.Tallies {
			fmt.Fprintf(a.out, "   %-40s %d\n", t.Label, t.Count)
		}
	}
	if len(rep.Timeseries) > 0 {
		fmt.Fprintln(a.out, "\nRespostas por dia:")
		for _, d := range rep.Timeseries {
			fmt.Fprintf(a.out, "   %s  %d\n", d.Date, d.Count)
		}
	}
	return nil
}

func (a *app) runExport(ctx context.Context, args []string) error {
	fs := a.newFlags("export")
	qid := fs.Int64("q", 0, "questionnaire id")
	output := fs.String("o", "", "output file (stdout when empty)")
	format := fs.String("format", "wide", "wide: one row per response; long: one row per answer")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	var (
		data string
		err  error
	)
	switch *format {
	case "wide":
		data, err = a.stats.ExportCSV(ctx, *qid)
	case "long":
		data, err = a.stats.ExportAnswersCSV(ctx, *qid)
	default:
		return fmt.Errorf("unknown export format %q", *format)
	}
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = fmt.Fprint(a.out, data)
		return err
	}
	if dir := filepath.Dir(*output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(*output, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	a.log.Info("export written", zap.String("path", *output), zap.String("format", *format))
	fmt.Fprintf(a.out, "Exportado para %s\n", *output)
	return nil
}

func (a *app) runAddUser(ctx context.Context, args []string) error {
	fs := a.newFlags("adduser")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (read from input when empty)")
	role := fs.String("role", string(models.RoleUser), "admin or user")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	pw, err := a.passwordArg(*password, "Senha: ")
	if err != nil {
		return err
	}
	u, err := a.auth.CreateUser(ctx, *username, pw, models.Role(*role))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Usuário %s criado (id %d, %s)\n", u.Username, u.ID, u.Role)
	return nil
}

func (a *app) runLogin(ctx context.Context, args []string) error {
	fs := a.newFlags("login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password (read from input when empty)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	pw, err := a.passwordArg(*password, "Senha: ")
	if err != nil {
		return err
	}
	u, err := a.auth.Authenticate(ctx, *username, pw)
	if err != nil {
		return err
	}
	if u == nil {
		return errors.New("usuário ou senha inválidos")
	}
	tok, err := a.auth.IssueToken(u)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tok)
	return nil
}

func (a *app) runWhoami(ctx context.Context, args []string) error {
	fs := a.newFlags("whoami")
	token := fs.String("t", os.Getenv("SATISFACAO_TOKEN"), "session token")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	u, err := a.auth.UserFromToken(ctx, strings.TrimSpace(*token))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (id %d, %s)\n", u.Username, u.ID, u.Role)
	return nil
}

func (a *app) runPasswd(ctx context.Context, args []string) error {
	fs := a.newFlags("passwd")
	username := fs.String("u", "", "username")
	current := fs.String("old", "", "current password")
	next := fs.String("new", "", "new password")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	u, err := a.store.FindUserByUsername(ctx, *username)
	if err != nil {
		return err
	}
	if err := a.auth.ChangePassword(ctx, u.ID, *current, *next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Senha alterada.")
	return nil
}

func (a *app) passwordArg(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(a.out, prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password given")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
