package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/soaringjerry/satisfacao/internal/models"
	"github.com/soaringjerry/satisfacao/internal/survey"
)

const backCommand = "<"

var errInputClosed = errors.New("input closed before the survey finished")

// runTake walks one respondent through a questionnaire on the terminal. With -state the
// session is saved there when input ends early and resumed from there on the next run.
func (a *app) runTake(ctx context.Context, args []string) error {
	fs := a.newFlags("take")
	qid := fs.Int64("q", 0, "questionnaire id")
	preview := fs.Bool("preview", false, "administrator test run: no intro, works on inactive questionnaires")
	statePath := fs.String("state", "", "file used to save and resume an unfinished session")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	sc := bufio.NewScanner(a.in)

	s, err := a.openSession(ctx, *qid, *preview, *statePath)
	if err != nil {
		return err
	}
	err = a.drive(ctx, sc, s)
	if errors.Is(err, errInputClosed) && *statePath != "" && !s.State.Terminal() {
		if serr := saveSession(*statePath, s); serr != nil {
			return serr
		}
		fmt.Fprintf(a.out, "\nSessão salva em %s\n", *statePath)
		return nil
	}
	if err != nil {
		return err
	}
	if *statePath != "" {
		if rerr := os.Remove(*statePath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			a.log.Warn("remove session state", zap.String("path", *statePath), zap.Error(rerr))
		}
	}
	fmt.Fprintf(a.out, "\nObrigado! Sua resposta foi registrada (nº %d).\n", s.ResponseID)
	return nil
}

func (a *app) openSession(ctx context.Context, qid int64, preview bool, statePath string) (*survey.Session, error) {
	if statePath != "" {
		data, err := os.ReadFile(statePath)
		switch {
		case err == nil:
			s, err := a.engine.Resume(ctx, data)
			if err != nil {
				return nil, fmt.Errorf("resume %s: %w", statePath, err)
			}
			fmt.Fprintln(a.out, "Continuando a pesquisa de onde parou.")
			return s, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}
	if preview {
		return a.engine.StartPreview(ctx, qid)
	}
	return a.engine.StartSurvey(ctx, qid)
}

func (a *app) drive(ctx context.Context, sc *bufio.Scanner, s *survey.Session) error {
	if s.State == survey.StateIntro {
		fmt.Fprintf(a.out, "Bem-vindo! %s\n", s.Questionnaire.Title)
		if s.Questionnaire.Description != "" {
			fmt.Fprintln(a.out, s.Questionnaire.Description)
		}
		if err := a.intro(sc, s); err != nil {
			return err
		}
	}
	for !s.State.Terminal() {
		if s.State == survey.StateSubmitting {
			err := a.engine.Commit(ctx, s)
			if models.IsCode(err, models.ErrorValidation) && s.State == survey.StateAnswering {
				fmt.Fprintf(a.out, "! %v\n", err)
				continue
			}
			if err != nil {
				return err
			}
			continue
		}
		q := s.Current()
		pos, total := s.Progress()
		fmt.Fprintf(a.out, "\nPergunta %d de %d\n%s\n", pos, total, q.Text)
		a.printHint(q)
		line, ok := readLine(sc)
		if !ok {
			return errInputClosed
		}
		if line == backCommand {
			if err := s.GoBack(); err != nil {
				fmt.Fprintln(a.out, "! Esta é a primeira pergunta.")
			}
			continue
		}
		if err := s.SubmitAnswer(resolveChoice(q, line)); err != nil {
			fmt.Fprintf(a.out, "! %v\n", err)
		}
	}
	return nil
}

func (a *app) intro(sc *bufio.Scanner, s *survey.Session) error {
	fmt.Fprint(a.out, "Seu nome (opcional): ")
	name, ok := readLine(sc)
	if !ok {
		return errInputClosed
	}
	for {
		fmt.Fprint(a.out, "Sua idade (opcional): ")
		raw, ok := readLine(sc)
		if !ok {
			return errInputClosed
		}
		info := survey.RespondentInfo{Name: name}
		if raw = strings.TrimSpace(raw); raw != "" {
			age, err := strconv.Atoi(raw)
			if err != nil {
				fmt.Fprintln(a.out, "! Digite a idade em números.")
				continue
			}
			info.Age = &age
		}
		if err := s.Begin(info); err != nil {
			fmt.Fprintf(a.out, "! %v\n", err)
			continue
		}
		return nil
	}
}

func (a *app) printHint(q *models.Question) {
	switch q.Type {
	case models.QuestionRating:
		fmt.Fprintf(a.out, "Nota de %d a %d estrelas:\n", survey.MinRating, survey.MaxRating)
	case models.QuestionYesNo:
		fmt.Fprintf(a.out, "%s ou %s:\n", survey.AnswerYes, survey.AnswerNo)
	case models.QuestionMultipleChoice:
		for i, opt := range q.Options {
			fmt.Fprintf(a.out, "  %d) %s\n", i+1, opt)
		}
	case models.QuestionText:
		if !q.IsRequired {
			fmt.Fprintln(a.out, "(opcional, deixe em branco para pular)")
		}
	}
	fmt.Fprintf(a.out, "(%s volta à pergunta anterior) > ", backCommand)
}

// resolveChoice lets a respondent pick a multiple choice option by its number.
func resolveChoice(q *models.Question, line string) string {
	if q.Type != models.QuestionMultipleChoice {
		return line
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(q.Options) {
		return line
	}
	return q.Options[n-1]
}

func readLine(sc *bufio.Scanner) (string, bool) {
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimRight(sc.Text(), "\r"), true
}

func saveSession(path string, s *survey.Session) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
