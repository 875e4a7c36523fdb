package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"go.uber.org/zap"

	"ghactivity/logger"
	"ghactivity/models"
)

// commitMessageFunc resolves a commit message by repository and SHA.
type commitMessageFunc func(ctx context.Context, repo, sha string) (string, bool)

// convertEvent maps a raw feed event to a display event. Events without a
// creation time are dropped.
func convertEvent(ctx context.Context, ev *gh.Event, lookup commitMessageFunc) (models.GithubEvent, bool) {
	if ev == nil || ev.CreatedAt == nil {
		return models.GithubEvent{}, false
	}

	rawType := ev.GetType()
	repo := ev.GetRepo().GetName()
	payload := parsePayload(ev)

	return models.GithubEvent{
		ID:    ev.GetID(),
		Type:  rawType,
		Kind:  models.KindOf(rawType),
		Repo:  repo,
		Title: buildTitle(ctx, rawType, repo, payload, lookup),
		URL:   buildURL(repo, payload),
		Date:  models.FormatDate(ev.GetCreatedAt().Time),
	}, true
}

// parsePayload decodes the kind-specific payload. A missing or malformed
// payload yields nil so that title and URL rules fall back to defaults.
func parsePayload(ev *gh.Event) any {
	if len(ev.GetRawPayload()) == 0 {
		return nil
	}
	payload, err := ev.ParsePayload()
	if err != nil {
		logger.Debug("Ignoring malformed event payload",
			zap.String("id", ev.GetID()),
			zap.String("type", ev.GetType()),
			zap.Error(err))
		return nil
	}
	return payload
}

func buildTitle(ctx context.Context, rawType, repo string, payload any, lookup commitMessageFunc) string {
	switch models.KindOf(rawType) {
	case models.KindPush:
		p, _ := payload.(*gh.PushEvent)
		return pushTitle(ctx, repo, p, lookup)

	case models.KindPullRequest:
		p, _ := payload.(*gh.PullRequestEvent)
		if title := p.GetPullRequest().GetTitle(); title != "" {
			return title
		}
		return fmt.Sprintf("%s pull request in %s", actionLabel(p.GetAction()), repo)

	case models.KindIssues:
		p, _ := payload.(*gh.IssuesEvent)
		if title := p.GetIssue().GetTitle(); title != "" {
			return title
		}
		return fmt.Sprintf("%s issue in %s", actionLabel(p.GetAction()), repo)

	case models.KindIssueComment:
		p, _ := payload.(*gh.IssueCommentEvent)
		if title := p.GetIssue().GetTitle(); title != "" {
			return "Commented on: " + title
		}
		return "Commented on issue in " + repo

	case models.KindReviewComment:
		p, _ := payload.(*gh.PullRequestReviewCommentEvent)
		if title := p.GetPullRequest().GetTitle(); title != "" {
			return "Reviewed: " + title
		}
		return "Reviewed pull request in " + repo

	case models.KindCreate:
		p, _ := payload.(*gh.CreateEvent)
		if p.GetRefType() == "repository" {
			return "Created repository " + repo
		}
		if ref := p.GetRef(); ref != "" {
			return fmt.Sprintf("Created %s %s in %s", p.GetRefType(), ref, repo)
		}
		return "Created in " + repo

	case models.KindDelete:
		p, _ := payload.(*gh.DeleteEvent)
		if ref := p.GetRef(); ref != "" {
			return fmt.Sprintf("Deleted %s %s in %s", p.GetRefType(), ref, repo)
		}
		return "Deleted in " + repo

	case models.KindFork:
		return "Forked repository " + repo

	case models.KindWatch:
		return "Starred " + repo

	case models.KindRelease:
		p, _ := payload.(*gh.ReleaseEvent)
		if name := p.GetRelease().GetName(); name != "" {
			return "Released " + name
		}
		if tag := p.GetRelease().GetTagName(); tag != "" {
			return "Released " + tag
		}
		return "Published release in " + repo

	case models.KindMember:
		p, _ := payload.(*gh.MemberEvent)
		if login := p.GetMember().GetLogin(); login != "" {
			return fmt.Sprintf("Added %s to %s", login, repo)
		}
		return "Updated members of " + repo
	}

	return rawType
}

func pushTitle(ctx context.Context, repo string, p *gh.PushEvent, lookup commitMessageFunc) string {
	fallback := "Pushed commits"
	if repo != "" {
		fallback = "Pushed to " + repo
	}

	var commits []*gh.HeadCommit
	if p != nil {
		commits = p.Commits
	}

	if len(commits) == 0 {
		if head := p.GetHead(); head != "" && repo != "" && lookup != nil {
			if msg, ok := lookup(ctx, repo, head); ok {
				return msg
			}
		}
		return fallback
	}

	first := commits[0]
	msg := first.GetMessage()
	if msg == "" {
		sha := commitSHA(first)
		if sha == "" || repo == "" || lookup == nil {
			return fallback
		}
		resolved, ok := lookup(ctx, repo, sha)
		if !ok {
			return fallback
		}
		msg = resolved
	}

	if len(commits) == 1 {
		return msg
	}
	return fmt.Sprintf("%s (+%d more)", msg, len(commits)-1)
}

func buildURL(repo string, payload any) string {
	switch p := payload.(type) {
	case *gh.PullRequestEvent:
		if u := p.GetPullRequest().GetHTMLURL(); u != "" {
			return u
		}
	case *gh.PullRequestReviewCommentEvent:
		if u := p.GetPullRequest().GetHTMLURL(); u != "" {
			return u
		}
	case *gh.IssuesEvent:
		if u := p.GetIssue().GetHTMLURL(); u != "" {
			return u
		}
	case *gh.IssueCommentEvent:
		if u := p.GetIssue().GetHTMLURL(); u != "" {
			return u
		}
	case *gh.PushEvent:
		if repo == "" {
			break
		}
		if len(p.Commits) == 1 {
			if sha := commitSHA(p.Commits[0]); sha != "" {
				return commitURL(repo, sha)
			}
		}
		if head := p.GetHead(); head != "" {
			return commitURL(repo, head)
		}
	}

	if repo == "" {
		return ""
	}
	return "https://github.com/" + repo
}

func commitURL(repo, sha string) string {
	return fmt.Sprintf("https://github.com/%s/commit/%s", repo, sha)
}

// commitSHA prefers the feed's "sha" field and falls back to the webhook "id".
func commitSHA(c *gh.HeadCommit) string {
	if sha := c.GetSHA(); sha != "" {
		return sha
	}
	return c.GetID()
}

func actionLabel(action string) string {
	if action == "" {
		return "Updated"
	}
	return strings.ToUpper(action[:1]) + action[1:]
}
