package room

// JoinResult 加入或创建房间的结果
type JoinResult struct {
	RoomID   string
	User     User
	Snapshot Snapshot
	Stats    Stats
}

// ResumeResult 恢复会话的结果
// Replaced 非空表示同名的旧成员记录被新连接替换
// HostReclaimed 表示宽限期内的原房主取回了房主身份
type ResumeResult struct {
	RoomID        string
	User          User
	Snapshot      Snapshot
	Replaced      *User
	HostReclaimed bool
	HostID        string
	Stats         Stats
}

// MembershipChanged 是否需要广播 room-updated
func (r ResumeResult) MembershipChanged() bool {
	return r.Replaced != nil || r.HostReclaimed
}

// LeaveResult 离开房间的结果
type LeaveResult struct {
	RoomID      string
	User        User
	Users       []User
	HostID      string
	HostChanged bool
	Stats       Stats
}

// Join 以普通成员身份加入；空房间的第一个成员成为房主
func (r *Room) Join(identity, username, passcode string, commit Commit[JoinResult]) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return JoinResult{}, ErrRoomNotFound
	}
	if !r.passcodeMatches(passcode) {
		return JoinResult{}, ErrInvalidPasscode
	}
	if r.indexOf(identity) >= 0 {
		return JoinResult{}, ErrAlreadyInRoom
	}

	user := r.addUser(identity, username, false)
	r.touch()

	res := JoinResult{
		RoomID:   r.id,
		User:     user,
		Snapshot: r.snapshotLocked(),
		Stats:    r.statsLocked(),
	}
	if commit != nil {
		commit(res)
	}
	return res, nil
}

// Resume 恢复会话
//  1. 同名成员仍在房间内：视为同一个人的旧连接，新连接接管其记录和房主身份
//  2. 房间为空：恢复者成为房主
//  3. 宽限期内以房主身份离开：取回房主
//  4. 其他情况按普通成员加入
func (r *Room) Resume(identity, username, passcode string, commit Commit[ResumeResult]) (ResumeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ResumeResult{}, ErrRoomNotFound
	}
	if !r.passcodeMatches(passcode) {
		return ResumeResult{}, ErrInvalidPasscode
	}
	if r.indexOf(identity) >= 0 {
		return ResumeResult{}, ErrAlreadyInRoom
	}

	now := r.now()
	res := ResumeResult{RoomID: r.id}

	if stale := r.findByUsername(username); stale != nil {
		old := *stale
		res.Replaced = &old
		stale.ID = identity
		stale.JoinedAt = now
		if stale.IsHost {
			r.hostID = identity
		}
		res.User = *stale
	} else {
		hint := false
		if d, ok := r.departed[username]; ok && d.wasHost && now.Sub(d.at) <= r.hostGrace {
			hint = true
			res.HostReclaimed = len(r.members) > 0
		}
		res.User = r.addUser(identity, username, hint)
	}
	delete(r.departed, username)
	r.touch()

	res.HostID = r.hostID
	res.Snapshot = r.snapshotLocked()
	res.Stats = r.statsLocked()
	if commit != nil {
		commit(res)
	}
	return res, nil
}

// Leave 移除成员，房主离开时由最早加入的成员接任
func (r *Room) Leave(identity string, commit Commit[LeaveResult]) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return LeaveResult{}, ErrRoomNotFound
	}

	user, hostChanged, ok := r.removeUser(identity)
	if !ok {
		return LeaveResult{}, ErrNotInRoom
	}

	res := LeaveResult{
		RoomID:      r.id,
		User:        user,
		Users:       r.usersLocked(),
		HostID:      r.hostID,
		HostChanged: hostChanged,
		Stats:       r.statsLocked(),
	}
	if commit != nil {
		commit(res)
	}
	return res, nil
}

// addUser 追加成员记录
// isHostHint 为 true 时当前房主被降级；房间为空时新成员总是房主
func (r *Room) addUser(identity, username string, isHostHint bool) User {
	isHost := isHostHint || len(r.members) == 0
	if isHost {
		r.clearHost()
		r.hostID = identity
	}

	u := &User{
		ID:       identity,
		Username: username,
		IsHost:   isHost,
		JoinedAt: r.now(),
	}
	r.members = append(r.members, u)
	return *u
}

// removeUser 删除成员记录并记录其离开时的角色
func (r *Room) removeUser(identity string) (User, bool, bool) {
	idx := r.indexOf(identity)
	if idx < 0 {
		return User{}, false, false
	}

	now := r.now()
	user := *r.members[idx]
	r.members = append(r.members[:idx], r.members[idx+1:]...)
	r.pruneDeparted()
	r.departed[user.Username] = departure{wasHost: user.IsHost, at: now}
	r.lastActivity = now

	hostChanged := false
	if user.IsHost {
		r.hostID = ""
		if len(r.members) > 0 {
			next := r.members[0]
			next.IsHost = true
			r.hostID = next.ID
			hostChanged = true
		}
	}
	return user, hostChanged, true
}

func (r *Room) clearHost() {
	for _, m := range r.members {
		m.IsHost = false
	}
	r.hostID = ""
}

func (r *Room) pruneDeparted() {
	now := r.now()
	for name, d := range r.departed {
		if now.Sub(d.at) > r.hostGrace {
			delete(r.departed, name)
		}
	}
}

func (r *Room) indexOf(identity string) int {
	for i, m := range r.members {
		if m.ID == identity {
			return i
		}
	}
	return -1
}

// findByUsername 在当前成员中按用户名查找，返回最早加入的那条
func (r *Room) findByUsername(username string) *User {
	for _, m := range r.members {
		if m.Username == username {
			return m
		}
	}
	return nil
}

func (r *Room) usersLocked() []User {
	users := make([]User, len(r.members))
	for i, m := range r.members {
		users[i] = *m
	}
	return users
}
