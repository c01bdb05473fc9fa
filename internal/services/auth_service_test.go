package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/peerq/peerq-api/internal/domain"
	"github.com/peerq/peerq-api/internal/repo"
)

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	s := &AuthService{DB: db, Tokens: newTokens()}
	ctx := context.Background()

	sess, err := s.Register(ctx, Registration{Username: "alice", Email: " Alice@Example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if sess.Token == "" || sess.User.Role != domain.RoleUser || sess.User.Email != "alice@example.com" {
		t.Fatalf("session = %+v", sess)
	}
	claims, err := s.Tokens.Parse(sess.Token)
	if err != nil || claims.UserID != sess.User.ID {
		t.Fatalf("token does not parse back: %+v, %v", claims, err)
	}

	if _, err := s.Register(ctx, Registration{Username: "alice", Email: "other@example.com", Password: "secret1"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("duplicate username err = %v", err)
	}
	if _, err := s.Register(ctx, Registration{Username: "bob", Email: "bob@example.com", Password: "secret1", Role: domain.RoleAdmin}); !errors.Is(err, ErrValidation) {
		t.Fatalf("admin self-registration err = %v", err)
	}
	if _, err := s.Register(ctx, Registration{Username: "bob", Email: "bob@example.com", Password: "123"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("weak password err = %v", err)
	}
	if _, err := s.Register(ctx, Registration{Username: "bob", Email: "not-an-email", Password: "secret1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad email err = %v", err)
	}

	if _, err := s.Login(ctx, "ALICE@example.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := s.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := s.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v", err)
	}
}

func TestRegisterGuest_AndUpgrade(t *testing.T) {
	db := newTestDB(t)
	s := &AuthService{DB: db, Tokens: newTokens()}
	ctx := context.Background()

	sess, err := s.RegisterGuest(ctx, "visitor")
	if err != nil {
		t.Fatalf("RegisterGuest: %v", err)
	}
	if sess.User.Role != domain.RoleGuest || !strings.HasPrefix(sess.User.Email, "guest_") {
		t.Fatalf("guest = %+v", sess.User)
	}
	if _, err := s.RegisterGuest(ctx, "visitor"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate guest err = %v", err)
	}
	if _, err := s.RegisterGuest(ctx, " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank guest err = %v", err)
	}

	mkUser(t, db, "taken", domain.RoleUser)
	if _, err := s.UpgradeGuest(ctx, sess.User.ID, Registration{Email: "taken@example.com", Password: "secret1"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("taken email err = %v", err)
	}
	if _, err := s.UpgradeGuest(ctx, sess.User.ID, Registration{Email: "v@example.com"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing password err = %v", err)
	}

	up, err := s.UpgradeGuest(ctx, sess.User.ID, Registration{Email: "v@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("UpgradeGuest: %v", err)
	}
	if up.User.ID != sess.User.ID || up.User.Role != domain.RoleUser || up.User.Username != "visitor" {
		t.Fatalf("upgraded = %+v", up.User)
	}
	if _, err := s.UpgradeGuest(ctx, sess.User.ID, Registration{Email: "w@example.com", Password: "secret1"}); !errors.Is(err, ErrNotGuest) {
		t.Fatalf("second upgrade err = %v", err)
	}
	if _, err := s.Login(ctx, "v@example.com", "secret1"); err != nil {
		t.Fatalf("login after upgrade: %v", err)
	}
}

func TestUpdateProfile_Conflicts(t *testing.T) {
	db := newTestDB(t)
	s := &AuthService{DB: db, Tokens: newTokens()}
	ctx := context.Background()
	alice := mkUser(t, db, "alice", domain.RoleUser)
	mkUser(t, db, "bob", domain.RoleUser)

	if _, err := s.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: strp("bob")}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("taken username err = %v", err)
	}
	if _, err := s.UpdateProfile(ctx, alice.ID, ProfileUpdate{Email: strp("BOB@example.com")}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("taken email err = %v", err)
	}
	u, err := s.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: strp("alice"), Bio: strp(" gopher "), Avatar: strp("a.png")})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Bio != "gopher" || u.Avatar != "a.png" || u.Username != "alice" {
		t.Fatalf("profile = %+v", u)
	}
}

func TestAdminUserManagement(t *testing.T) {
	db := newTestDB(t)
	s := &AuthService{DB: db, Tokens: newTokens()}
	ctx := context.Background()
	admin := mkUser(t, db, "root", domain.RoleAdmin)
	alice := mkUser(t, db, "alice", domain.RoleUser)

	if _, err := s.SetRole(ctx, alice.ID, "wizard"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("bad role err = %v", err)
	}
	u, err := s.SetRole(ctx, alice.ID, "Guest")
	if err != nil || u.Role != domain.RoleGuest {
		t.Fatalf("SetRole = %+v, %v", u, err)
	}
	if _, err := s.SetRole(ctx, "missing", "user"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("missing user err = %v", err)
	}

	users, page, err := s.ListUsers(ctx, "ali", 1, 10)
	if err != nil || len(users) != 1 || page.TotalItems != 1 {
		t.Fatalf("ListUsers = %+v, %+v, %v", users, page, err)
	}

	if err := s.DeleteUser(ctx, admin.ID); !errors.Is(err, ErrCannotDeleteAdmin) {
		t.Fatalf("delete admin err = %v", err)
	}
}

func TestDeleteUser_RemovesOwnedContentAndRecountsVotes(t *testing.T) {
	db := newTestDB(t)
	s := &AuthService{DB: db, Tokens: newTokens()}
	qs := &QuestionService{DB: db}
	as := &AnswerService{DB: db}
	ns := &NotificationService{DB: db}
	chats := NewChatService(db, dbChatRepo{}, nil)
	ctx := context.Background()

	admin := mkUser(t, db, "root", domain.RoleAdmin)
	alice := mkUser(t, db, "alice", domain.RoleUser)
	bob := mkUser(t, db, "bob", domain.RoleUser)

	own, _ := qs.Create(ctx, bob.ID, QuestionInput{Title: "bob's", Description: "D"})
	other, _ := qs.Create(ctx, alice.ID, QuestionInput{Title: "alice's", Description: "D"})
	ans, _ := as.Create(ctx, bob, other.ID, "bob answers")
	if _, err := as.Accept(ctx, alice, ans.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := qs.Vote(ctx, bob.ID, other.ID, "upvote"); err != nil {
		t.Fatal(err)
	}
	chat, _ := chats.Create(ctx, bob.ID, "")
	if _, err := ns.Create(ctx, admin.ID, NewNotification{UserID: &bob.ID, Type: domain.NotifyInfo, Title: "t", Message: "m"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteUser(ctx, bob.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if _, err := s.Me(ctx, bob.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("user still exists: %v", err)
	}
	if _, err := repo.GetQuestion(ctx, db, own.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("own question survived: %v", err)
	}
	if _, err := repo.GetAnswer(ctx, db, ans.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("answer survived: %v", err)
	}
	q, _ := repo.GetQuestion(ctx, db, other.ID)
	if q.VoteCount != 0 || q.IsAnswered || q.AcceptedAnswerID != nil {
		t.Fatalf("other question not repaired: %+v", q)
	}
	if _, err := repo.GetChat(ctx, db, chat.ID, bob.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("chat survived: %v", err)
	}
	var left int64
	db.Model(&domain.Notification{}).Where("user_id = ?", bob.ID).Count(&left)
	if left != 0 {
		t.Fatalf("targeted notifications left: %d", left)
	}
}

func TestEnsureAdmin_CreatesThenPromotes(t *testing.T) {
	db := newTestDB(t)
	s := &AuthService{DB: db, Tokens: newTokens()}
	ctx := context.Background()

	u, created, err := s.EnsureAdmin(ctx, "admin", "Admin@PeerQ.com", "admin-password")
	if err != nil || !created {
		t.Fatalf("first EnsureAdmin = %v, %v", created, err)
	}
	if u.Role != domain.RoleAdmin || u.Reputation != AdminReputation || u.Email != "admin@peerq.com" {
		t.Fatalf("admin = %+v", u)
	}
	if _, err := s.Login(ctx, "admin@peerq.com", "admin-password"); err != nil {
		t.Fatalf("login as admin: %v", err)
	}

	// second run is a no-op promote
	again, created, err := s.EnsureAdmin(ctx, "admin", "admin@peerq.com", "ignored-password")
	if err != nil || created || again.ID != u.ID {
		t.Fatalf("second EnsureAdmin = %+v, %v, %v", again, created, err)
	}
	if _, err := s.Login(ctx, "admin@peerq.com", "admin-password"); err != nil {
		t.Fatalf("password must be kept: %v", err)
	}

	// an existing regular user is promoted by username
	bob := mkUser(t, db, "bob", domain.RoleUser)
	p, created, err := s.EnsureAdmin(ctx, "bob", "other@peerq.com", "whatever1")
	if err != nil || created || p.ID != bob.ID || p.Role != domain.RoleAdmin || p.Reputation != AdminReputation {
		t.Fatalf("promote = %+v, %v, %v", p, created, err)
	}

	if _, _, err := s.EnsureAdmin(ctx, "newadmin", "new@peerq.com", "short"); err == nil {
		t.Fatalf("weak password should fail")
	}
}
