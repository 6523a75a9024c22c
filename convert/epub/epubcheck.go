package epub

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"ebc/config"
)

// Validate runs epubcheck against a finished container. Validation is
// advisory, problems are logged and the build result stands either way.
// When the jar or the java binary is not available the check is skipped
// with a notice.
func Validate(ctx context.Context, cfg *config.ValidatorConfig, epubPath string, log *zap.Logger) {

	if len(cfg.JarPath) == 0 {
		log.Info("Validator jar not configured, skipping validation")
		return
	}
	if _, err := os.Stat(cfg.JarPath); err != nil {
		log.Warn("Validator jar not found, skipping validation", zap.String("jar", cfg.JarPath))
		return
	}
	java := cfg.JavaPath
	if len(java) == 0 {
		java = "java"
	}
	if _, err := exec.LookPath(java); err != nil {
		log.Warn("Java binary not found, skipping validation", zap.String("java", java))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	log.Info("Validating container", zap.String("file", epubPath))

	cmd := exec.CommandContext(ctx, java, "-jar", cfg.JarPath, epubPath)
	out, err := cmd.CombinedOutput()

	problems := validatorProblems(out)
	for _, line := range problems {
		log.Warn("Validator finding", zap.String("detail", line))
	}

	switch {
	case ctx.Err() != nil:
		log.Warn("Validation timed out", zap.String("file", epubPath))
	case err != nil:
		log.Warn("Validation reported problems", zap.String("file", epubPath), zap.Int("findings", len(problems)), zap.Error(err))
	default:
		log.Info("Validation passed", zap.String("file", epubPath))
	}
}

// validatorProblems extracts ERROR and FATAL lines from epubcheck output.
func validatorProblems(out []byte) []string {

	var problems []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "ERROR") || strings.HasPrefix(line, "FATAL") {
			problems = append(problems, line)
		}
	}
	return problems
}
