package workspace

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/openclaw/clawspace/pkg/logger"
	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

// MaterializeResult reports how shared_skills ended up on disk
type MaterializeResult struct {
	State    PathState
	Fallback bool     // the requested strategy could not be honoured and an empty directory was created
	Warnings []string // non-fatal problems, already logged
}

func (r *MaterializeResult) warn(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	logger.G(ctx).Warn(msg)
}

// Materialize makes skillsDir a symlink to globalRoot, an independent copy of
// it, or an empty directory depending on strategy. Symlink and copy failures
// degrade to an empty directory; an error is returned only when not even that
// can be created.
func Materialize(ctx context.Context, skillsDir, globalRoot string, strategy workspaces.Strategy) (MaterializeResult, error) {
	var res MaterializeResult
	var err error

	switch strategy {
	case workspaces.StrategySymlink:
		err = materializeSymlink(ctx, &res, skillsDir, globalRoot)
	case workspaces.StrategyCopy:
		err = materializeCopy(ctx, &res, skillsDir, globalRoot)
	case workspaces.StrategyNone:
		if err = unlinkSymlink(skillsDir); err == nil {
			err = ensureDir(skillsDir)
		}
	default:
		return res, errors.Errorf("unhandled skills strategy %v", strategy)
	}
	if err != nil {
		return res, err
	}

	res.State, err = probe(skillsDir)
	return res, err
}

func materializeSymlink(ctx context.Context, res *MaterializeResult, skillsDir, globalRoot string) error {
	log := logger.G(ctx).WithField("skills_dir", skillsDir)

	if err := os.MkdirAll(globalRoot, dirPerm); err != nil {
		res.warn(ctx, "failed to create global skills root %s: %v", globalRoot, err)
	}

	state, err := probe(skillsDir)
	if err != nil {
		log.WithError(err).Debug("cannot inspect shared_skills, treating it as absent")
	}
	if state == PathSymlink {
		log.Debug("shared_skills symlink already exists")
		return nil
	}

	if err := os.Symlink(globalRoot, skillsDir); err != nil {
		res.warn(ctx, "failed to symlink %s, falling back to an empty directory: %v", skillsDir, err)
		res.Fallback = true
		return ensureDir(skillsDir)
	}
	log.WithField("target", globalRoot).Debug("shared_skills symlinked")
	return nil
}

func materializeCopy(ctx context.Context, res *MaterializeResult, skillsDir, globalRoot string) error {
	log := logger.G(ctx).WithField("skills_dir", skillsDir)

	if err := unlinkSymlink(skillsDir); err != nil {
		return err
	}

	if _, err := os.Stat(globalRoot); err != nil {
		if !os.IsNotExist(err) {
			res.warn(ctx, "cannot read global skills root %s: %v", globalRoot, err)
			res.Fallback = true
		} else {
			log.Debug("no global skills found, creating empty shared_skills")
		}
		return ensureDir(skillsDir)
	}

	skipped, err := copySkillsTree(globalRoot, skillsDir)
	for _, p := range skipped {
		res.warn(ctx, "skipped %s while copying skills (broken link, link cycle or special file)", p)
	}
	if err != nil {
		res.warn(ctx, "failed to copy skills into %s: %v", skillsDir, err)
		res.Fallback = true
		return ensureDir(skillsDir)
	}
	log.WithField("source", globalRoot).Debug("shared_skills copied")
	return nil
}

func ensureDir(path string) error {
	return ioError("mkdir", path, os.MkdirAll(path, dirPerm))
}

// unlinkSymlink removes path if, and only if, it is a symbolic link. The link
// target is never touched.
func unlinkSymlink(path string) error {
	state, err := probe(path)
	if err != nil {
		return err
	}
	if state != PathSymlink {
		return nil
	}
	return ioError("unlink", path, os.Remove(path))
}
