package fakeuserrepo

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/jrsteele09/gov-console/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users   map[string]*users.User
	loginID map[string]string // sign-in identifier to user id
	lock    sync.RWMutex
}

func NewFakeUserRepo() users.UserRepo {
	return &FakeUserRepo{
		users:   make(map[string]*users.User),
		loginID: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if previous, ok := ur.users[user.ID]; ok && previous.UserID != user.UserID {
		delete(ur.loginID, previous.UserID)
	}
	ur.users[user.ID] = user
	ur.loginID[user.UserID] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return interrors.Wrapf(interrors.ErrUserNotFound, "[FakeUserRepo.Delete] %s", id)
	}
	delete(ur.loginID, user.UserID)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, interrors.Wrapf(interrors.ErrUserNotFound, "[FakeUserRepo.GetByID] %s", id)
	}
	return user, nil
}

func (ur *FakeUserRepo) GetByUserID(userID string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.loginID[userID]
	if !ok {
		return nil, interrors.Wrapf(interrors.ErrUserNotFound, "[FakeUserRepo.GetByUserID] %s", userID)
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) List(offset, limit int) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0, len(ur.users))
	for _, v := range ur.users {
		userList = append(userList, v)
	}
	sort.Slice(userList, func(i, j int) bool {
		return userList[i].UserID < userList[j].UserID
	})

	if offset < 0 || offset >= len(userList) {
		return []*users.User{}, nil
	}
	end := len(userList)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return userList[offset:end], nil
}

func (ur *FakeUserRepo) SetBlocked(userID string, blocked bool) error {
	user, err := ur.GetByUserID(userID)
	if err != nil {
		return err
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()
	user.Blocked = blocked
	return nil
}

func (ur *FakeUserRepo) SetLastLogin(userID string, at time.Time) error {
	user, err := ur.GetByUserID(userID)
	if err != nil {
		return err
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()
	user.LastLogin = at
	return nil
}
