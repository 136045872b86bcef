// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"

	"kinship/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// DryRun builds entities without touching the database.
	DryRun bool
	// SkipBcrypt stores plain-text passwords for faster local seeding.
	SkipBcrypt bool
	// MaxDays spreads post timestamps over the last N days (default 90).
	MaxDays int
}

// friendDensity is the fraction of possible user pairs that become friends.
const friendDensity = 0.15

// requestDensity is the fraction of possible user pairs left with a
// pending request.
const requestDensity = 0.05

// Seed populates the database with test data: users, a friendship graph,
// posts with a realistic timestamp spread, and comments and likes on them.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Seeding database with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("warning: could not clear all existing data, continuing anyway")
		}
	}

	f := NewFactory(db, opts)

	users, err := createUsers(f, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("created %d users", len(users))

	friendships, requests, err := createFriendGraph(f, users)
	if err != nil {
		return fmt.Errorf("failed to create friend graph: %w", err)
	}
	log.Printf("created %d friendships and %d pending requests", friendships, requests)

	posts, err := createPosts(f, users, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("created %d posts", len(posts))

	if err := createEngagement(f, users, posts); err != nil {
		return fmt.Errorf("failed to create comments and likes: %w", err)
	}

	log.Println("Database seeding completed")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE likes, comments, posts, friend_edges, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createUsers(f *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)

	// A fixed account to log in with during development.
	if count > 0 {
		user, err := f.CreateUser(func(u *models.User) {
			u.FirstName = "Dev"
			u.LastName = "Account"
			u.Email = "dev@example.com"
		})
		if err == nil {
			users = append(users, user)
		}
	}

	for i := len(users); i < count; i++ {
		user, err := f.CreateUser()
		if err != nil {
			log.Printf("failed to create user: %v", err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("created %d users...", i)
		}
	}
	return users, nil
}

// createFriendGraph wires a random friendship graph over the seeded users.
// Every relationship is a mirrored pair of rows so the graph satisfies the
// same symmetry the services maintain.
func createFriendGraph(f *Factory, users []*models.User) (friendships, requests int, err error) {
	for i := 0; i < len(users); i++ {
		for j := i + 1; j < len(users); j++ {
			roll := f.rng.Float64()
			switch {
			case roll < friendDensity:
				if err := f.CreateFriendship(users[i], users[j]); err != nil {
					return friendships, requests, err
				}
				friendships++
			case roll < friendDensity+requestDensity:
				if err := f.CreateFriendRequest(users[i], users[j]); err != nil {
					return friendships, requests, err
				}
				requests++
			}
		}
	}
	return friendships, requests, nil
}

func createPosts(f *Factory, users []*models.User, count int) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		user := users[f.rng.Intn(len(users))]
		posts = append(posts, f.BuildPost(user))
	}

	// Insert in chunks to keep statements reasonable on big seeds.
	const chunk = 200
	for start := 0; start < len(posts); start += chunk {
		end := start + chunk
		if end > len(posts) {
			end = len(posts)
		}
		batch := posts[start:end]
		if err := f.CreatePostsBatch(batch); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// createEngagement sprinkles comments and likes over the seeded posts.
func createEngagement(f *Factory, users []*models.User, posts []*models.Post) error {
	if len(users) == 0 {
		return nil
	}

	for _, post := range posts {
		// 0-4 comments per post
		for n := f.rng.Intn(5); n > 0; n-- {
			commenter := users[f.rng.Intn(len(users))]
			comment, err := f.CreateComment(commenter, post)
			if err != nil {
				return err
			}
			// Occasionally someone likes a comment.
			if f.rng.Float64() < 0.3 {
				liker := users[f.rng.Intn(len(users))]
				if err := f.CreateCommentLike(liker, comment); err != nil {
					return err
				}
			}
		}

		// Post likes from a random sample of distinct users.
		likerCount := f.rng.Intn(len(users))/2 + 1
		seen := make(map[uint]bool)
		for n := 0; n < likerCount; n++ {
			liker := users[f.rng.Intn(len(users))]
			if seen[liker.ID] {
				continue
			}
			seen[liker.ID] = true
			if err := f.CreatePostLike(liker, post); err != nil {
				return err
			}
		}
	}
	return nil
}
