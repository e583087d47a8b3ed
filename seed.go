package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cppla/webdevhub/services"
)

const seedPassword = "Password123!"

var seedUsers = []struct{ username, email string }{
	{"react_dev_alex", "alex.frontend@gmail.com"},
	{"fullstack_sarah", "sarah.fullstack@gmail.com"},
	{"backend_ninja", "ninja.backend@gmail.com"},
}

type seedItem struct {
	author   int
	title    string
	body     string
	tags     []string
	image    string
	category string
	replies  []seedReply
}

type seedReply struct {
	author int
	text   string
}

var seedPosts = []seedItem{
	{
		author: 0,
		title:  "Mastering Next.js 14: App Router and Server Components",
		body:   "Next.js 14 introduces the App Router and Server Components. This guide covers data fetching patterns, streaming and the metadata API.",
		tags:   []string{"Next.js", "React", "Server Components", "Performance"},
		image:  "https://images.unsplash.com/photo-1633356122544-f134324a6cee?w=800",
		replies: []seedReply{
			{1, "Excellent breakdown of Next.js 14 features! Have you hit any libraries that don't support server components yet?"},
			{2, "Just migrated our app to the App Router last week. The streaming improvements are incredible."},
		},
	},
	{
		author: 1,
		title:  "TypeScript Best Practices for Large-Scale Applications",
		body:   "Advanced TypeScript patterns for large codebases: strict mode, custom type guards, conditional types and generics.",
		tags:   []string{"TypeScript", "JavaScript", "Architecture", "Best Practices"},
		image:  "https://images.unsplash.com/photo-1498050108023-c5249f4df085?w=800",
		replies: []seedReply{
			{0, "Great TypeScript tips! Would love a follow-up on advanced generic patterns."},
		},
	},
	{
		author: 2,
		title:  "Building Modern APIs with GraphQL and Prisma",
		body:   "Setting up a GraphQL API with authentication, subscriptions and optimized queries, plus testing and deployment.",
		tags:   []string{"GraphQL", "Prisma", "API Design", "Database"},
		image:  "https://images.unsplash.com/photo-1627398242454-45a1465c2479?w=800",
	},
	{
		author: 0,
		title:  "CSS Grid and Flexbox: Modern Layout Techniques",
		body:   "Practical grid layouts, flexbox patterns and how to combine both. Also subgrid and container queries.",
		tags:   []string{"CSS", "Layout", "Responsive Design", "Frontend"},
		image:  "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=800",
		replies: []seedReply{
			{2, "CSS Grid has completely changed my workflow. Subgrid is a game-changer for nested layouts."},
		},
	},
}

var seedThreads = []seedItem{
	{
		author:   0,
		title:    "Should I migrate from Create React App to Vite?",
		body:     "My team is considering moving our React app from CRA to Vite. What challenges and benefits did you see?",
		category: "react",
		replies: []seedReply{
			{1, "We migrated last quarter. Dev server startup went from 30s to under 2s. Watch out for env variable prefixes."},
		},
	},
	{
		author:   1,
		title:    "AI-Powered Development Tools: Game Changer or Hype?",
		body:     "Are AI coding assistants improving your productivity, or do you spend more time debugging generated code?",
		category: "general",
	},
	{
		author:   2,
		title:    "Serverless vs Traditional Backend: 2024 Perspective",
		body:     "Architecting a new SaaS app with moderate traffic and some real-time features. Serverless or containers?",
		category: "nodejs",
	},
	{
		author:   0,
		title:    "Web Components vs Framework Components",
		body:     "Has anyone built production applications using Web Components? How do they compare to React or Vue components?",
		category: "javascript",
	},
}

// seed creates sample accounts and content through the services. It stops after
// the accounts when the first sample user already exists.
func seed(ctx context.Context, a *app) error {
	ids := make([]string, len(seedUsers))
	fresh := true
	for i, u := range seedUsers {
		res, err := a.identity.Register(ctx, u.username, u.email, seedPassword)
		if services.KindOf(err) == services.KindConflict {
			existing, ferr := a.store.FindUserByLogin(ctx, u.email)
			if ferr != nil {
				return fmt.Errorf("seed: look up %s: %w", u.username, ferr)
			}
			ids[i] = existing.ID
			if i == 0 {
				fresh = false
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("seed: register %s: %w", u.username, err)
		}
		ids[i] = res.User.ID
	}
	if !fresh {
		a.log.Info("sample users already present, skipping content")
		return nil
	}

	if err := seedContent(ctx, a.blog, ids, seedPosts); err != nil {
		return err
	}
	if err := seedContent(ctx, a.forum, ids, seedThreads); err != nil {
		return err
	}
	a.log.Info("database seeded",
		zap.Int("users", len(ids)),
		zap.Int("posts", len(seedPosts)),
		zap.Int("threads", len(seedThreads)),
		zap.String("password", seedPassword))
	return nil
}

func seedContent(ctx context.Context, svc *services.ContentService, ids []string, items []seedItem) error {
	for _, it := range items {
		in := services.ItemInput{Title: it.title, Body: it.body, ImageURL: it.image, Tags: it.tags, Category: it.category}
		item, err := svc.Create(ctx, ids[it.author], in)
		if err != nil {
			return fmt.Errorf("seed: create %q: %w", it.title, err)
		}
		for _, r := range it.replies {
			if _, err := svc.AddEngagement(ctx, item.ID, ids[r.author], r.text); err != nil {
				return fmt.Errorf("seed: reply to %q: %w", it.title, err)
			}
		}
	}
	return nil
}
