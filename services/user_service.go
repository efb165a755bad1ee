package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"skyshelf/models"
	"skyshelf/utils"
)

const apiKeyBytes = 128

// UserService manages authentication principals: account creation,
// credential and privilege updates, and API-key lookups.
type UserService struct {
	users *mongo.Collection
}

func NewUserService(db *mongo.Database) *UserService {
	return &UserService{users: db.Collection("users")}
}

func mintAPIKey() (string, error) {
	raw := make([]byte, apiKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw), nil
}

func (s *UserService) Create(ctx context.Context, name, password string, privileges []models.Privilege, compliance *models.ComplianceInformation) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	apiKey, err := mintAPIKey()
	if err != nil {
		return nil, err
	}

	now := utils.CurrentUTCTime()
	user := &models.User{
		ID:             primitive.NewObjectID(),
		Name:           name,
		HashedPassword: string(hashed),
		APIKey:         apiKey,
		Privileges:     privileges,
		Compliance:     compliance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", name, err)
	}
	return user, nil
}

func (s *UserService) Read(ctx context.Context, name string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"name": name}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %q: %w", name, err)
	}
	return &user, nil
}

func (s *UserService) ReadByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %s: %w", id.Hex(), err)
	}
	return &user, nil
}

// Update changes a user's password, privileges or API key. Nil/false
// arguments leave the corresponding field untouched.
func (s *UserService) Update(ctx context.Context, name string, password *string, privileges []models.Privilege, refreshKey bool) (*models.User, error) {
	user, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": utils.CurrentUTCTime()}

	if privileges != nil {
		set["privileges"] = privileges
		user.Privileges = privileges
	}
	if refreshKey {
		apiKey, err := mintAPIKey()
		if err != nil {
			return nil, err
		}
		set["api_key"] = apiKey
		user.APIKey = apiKey
	}
	if password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		set["hashed_password"] = string(hashed)
		user.HashedPassword = string(hashed)
	}

	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set}); err != nil {
		return nil, fmt.Errorf("failed to update user %q: %w", name, err)
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, name string) error {
	user, err := s.Read(ctx, name)
	if err != nil {
		return err
	}
	if _, err := s.users.DeleteOne(ctx, bson.M{"_id": user.ID}); err != nil {
		return fmt.Errorf("failed to delete user %q: %w", name, err)
	}
	return nil
}

// UserFromAPIKey resolves the user holding an API key.
func (s *UserService) UserFromAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"api_key": apiKey}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: unknown API key", ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}
	return &user, nil
}

// VerifyPassword reads a user and checks the password against the
// stored hash. A mismatch is indistinguishable from a missing user.
func (s *UserService) VerifyPassword(ctx context.Context, name, password string) (*models.User, error) {
	user, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUserNotFound, name)
	}
	return user, nil
}
