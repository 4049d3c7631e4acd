package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/examhall/internal/exam"
	"github.com/pavelanni/examhall/internal/model"
	"github.com/pavelanni/examhall/internal/store"
)

// examFile is the layout of an exam definition file.
type examFile struct {
	Exams []exam.ExamDraft `json:"exams" yaml:"exams"`
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create exams from JSON or YAML definition files",
		RunE:  runImport,
	}
	f := cmd.Flags()
	addCommonFlags(f)
	f.StringSliceP("file", "f", nil, "Exam definition files (repeatable)")
	f.Int64("course", 0, "Override the course id of every imported exam")
	f.String("as", "admin", "Username the exams are created as")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the results of an exam as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addCommonFlags(f)
	f.Int64("exam-id", 0, "Exam id (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("exam-id")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a stored user",
		RunE:  runToken,
	}
	f := cmd.Flags()
	addCommonFlags(f)
	addTokenFlags(f)
	f.StringP("username", "u", "", "Username (required)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func parseExamFile(path string, data []byte) ([]exam.ExamDraft, error) {
	var ef examFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &ef); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &ef); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	}
	if len(ef.Exams) == 0 {
		return nil, fmt.Errorf("no exams defined")
	}
	return ef.Exams, nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()

	username := v.GetString("as")
	user, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("load user %q: %w", username, err)
	}
	if user == nil {
		return fmt.Errorf("user %q not found", username)
	}
	p := model.Principal{UserID: user.ID, Username: user.Username, Roles: user.Roles}
	svc := exam.New(db, nil)

	for _, path := range v.GetStringSlice("file") {
		if _, err := importFile(ctx, db, svc, p, path, v.GetInt64("course")); err != nil {
			return err
		}
	}
	total, err := db.ExamCount(ctx)
	if err != nil {
		return fmt.Errorf("count exams: %w", err)
	}
	slog.Info("import finished", "exams_in_db", total)
	return nil
}

// importFile creates the exams defined in one file and returns how many were
// created. Every draft is built before any exam is stored, so a file with a
// broken draft creates nothing and stays unrecorded.
func importFile(ctx context.Context, db *store.Store, svc *exam.Service, p model.Principal, path string, courseOverride int64) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	hash := sha256sum(data)
	storedHash, err := db.GetImportedFileHash(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Info("exam file unchanged, skipping", "path", path)
		return 0, nil
	}
	if storedHash != "" {
		slog.Warn("exam file changed since last import, skipping to avoid duplicate exams", "path", path)
		return 0, nil
	}

	drafts, err := parseExamFile(path, data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	for i := range drafts {
		if courseOverride > 0 {
			drafts[i].CourseID = courseOverride
		}
		if _, err := exam.BuildExam(drafts[i]); err != nil {
			return 0, fmt.Errorf("%s: exam %d (%q): %w", path, i+1, drafts[i].Title, err)
		}
	}

	created := 0
	for i, d := range drafts {
		id, err := svc.Create(ctx, p, d)
		if err != nil {
			return created, fmt.Errorf("%s: exam %d (%q): %w", path, i+1, d.Title, err)
		}
		created++
		slog.Info("imported exam", "path", path, "id", id, "title", d.Title)
	}

	if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
		return created, fmt.Errorf("record import for %s: %w", path, err)
	}
	return created, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func runExport(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.ExportExamResults(cmd.Context(), v.GetInt64("exam-id"))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported results", "exam_id", export.ExamID, "results", len(export.Results))
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	tokens, err := newIssuer(v)
	if err != nil {
		return fmt.Errorf("configure tokens: %w", err)
	}
	username := v.GetString("username")
	user, err := db.GetUserByUsername(cmd.Context(), username)
	if err != nil {
		return fmt.Errorf("load user %q: %w", username, err)
	}
	if user == nil || !user.Active {
		return fmt.Errorf("no active user %q", username)
	}
	token, exp, err := tokens.Issue(*user)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	slog.Info("issued token", "username", username, "expires_at", exp.UTC())
	return nil
}
