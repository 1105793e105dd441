package main

import (
	"context"
	"errors"
	"io"
	"sync"

	v1 "github.com/PaulBabatuyi/tumatch-chat/api/chat/v1"
	"github.com/PaulBabatuyi/tumatch-chat/internal/apperr"
	"github.com/PaulBabatuyi/tumatch-chat/internal/auth"
	"github.com/PaulBabatuyi/tumatch-chat/internal/chat"
	"github.com/PaulBabatuyi/tumatch-chat/internal/data"
	"github.com/PaulBabatuyi/tumatch-chat/internal/normalize"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const maxPageSize = 50

// Register creates an account, stores its skills and returns a token.
func (s *Server) Register(ctx context.Context, req *v1.RegisterRequest) (*v1.AuthResponse, error) {
	email := normalize.Email(req.GetEmail())
	if email == "" || req.Password == "" {
		return nil, status.Errorf(codes.InvalidArgument, "email and password are required")
	}
	profession := req.Profession
	switch profession {
	case "":
		profession = data.ProfessionStudent
	case data.ProfessionStudent, data.ProfessionInvestor:
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown profession %q", profession)
	}

	var skills []data.Skill
	for _, sk := range req.Skills {
		if sk.Value == "" {
			return nil, status.Errorf(codes.InvalidArgument, "skill value is required")
		}
		skills = append(skills, data.Skill{Label: sk.Label, Value: sk.Value})
	}
	skillIDs, err := s.skills.UpsertSkills(ctx, skills)
	if err != nil {
		log.Errorf("upsert skills for %s: %v", email, err)
		return nil, status.Errorf(codes.Internal, "failed to store skills")
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to hash password: %v", err)
	}

	user, err := s.users.CreateUser(ctx, &data.User{
		Email:      email,
		Password:   hashed,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Profession: profession,
		Skills:     skillIDs,
	})
	if errors.Is(err, data.ErrDuplicate) {
		return nil, status.Errorf(codes.AlreadyExists, "user already exists")
	}
	if err != nil {
		log.Errorf("create user failed: %v", err)
		return nil, status.Errorf(codes.Internal, "failed to create user")
	}

	log.Infof("registered user %s", user.ID.Hex())
	return s.issueToken(user)
}

// Login authenticates a user and returns a token.
func (s *Server) Login(ctx context.Context, req *v1.LoginRequest) (*v1.AuthResponse, error) {
	if req.GetEmail() == "" || req.Password == "" {
		return nil, status.Errorf(codes.InvalidArgument, "email and password are required")
	}
	user, err := s.users.GetUserByEmail(ctx, req.GetEmail())
	if errors.Is(err, data.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "user not found")
	}
	if err != nil {
		log.Errorf("lookup user: %v", err)
		return nil, status.Errorf(codes.Internal, "failed to look up user")
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "invalid credentials")
	}
	return s.issueToken(user)
}

func (s *Server) issueToken(user *data.User) (*v1.AuthResponse, error) {
	token, expiresAt, err := s.auth.GenerateTokenWithProfession(user.ID, user.Email, user.Profession)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to generate token: %v", err)
	}
	return &v1.AuthResponse{Token: token, UserID: user.ID.Hex(), ExpiresAt: expiresAt}, nil
}

// ListChats returns the caller's chats with participant profiles.
func (s *Server) ListChats(ctx context.Context, _ *v1.ListChatsRequest) (*v1.ListChatsResponse, error) {
	claims, ok := getClaimsFromContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	views, err := s.chats.ListChats(ctx, claims.UserID)
	if err != nil {
		log.Errorf("list chats of %s: %v", claims.UserID, err)
		return nil, apperr.ToStatus(err)
	}

	resp := &v1.ListChatsResponse{Chats: make([]v1.Chat, 0, len(views))}
	for _, v := range views {
		resp.Chats = append(resp.Chats, chatToWire(v))
	}
	return resp, nil
}

func chatToWire(v chat.View) v1.Chat {
	c := v1.Chat{
		ID:           v.Chat.ID.Hex(),
		Participants: make([]v1.Participant, 0, len(v.Chat.Participants)),
		Messages:     make([]v1.ChatMessage, 0, len(v.Chat.Messages)),
	}
	for _, id := range v.Chat.Participants {
		p := v1.Participant{ID: id.Hex()}
		if prof, ok := v.Profiles[id]; ok {
			p.FirstName, p.LastName, p.Profession = prof.FirstName, prof.LastName, prof.Profession
		}
		c.Participants = append(c.Participants, p)
	}
	for _, m := range v.Chat.Messages {
		c.Messages = append(c.Messages, v1.ChatMessage{Sender: m.Sender.Hex(), Message: m.Message, Date: m.Date})
	}
	return c
}

// GetRecommendations ranks startups for the caller. Admins may ask on behalf of another
// user. Failures yield an empty result, never an error.
func (s *Server) GetRecommendations(ctx context.Context, req *v1.RecommendationsRequest) (*v1.RecommendationsResponse, error) {
	claims, ok := getClaimsFromContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing auth claims")
	}
	userID := claims.UserID
	if req.UserID != "" && req.UserID != claims.UserID {
		if claims.Profession != data.ProfessionAdmin {
			return nil, status.Errorf(codes.PermissionDenied, "cannot read another user's recommendations")
		}
		userID = req.UserID
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	p := s.recs.RecommendWithPreview(ctx, userID, pageSize)
	resp := &v1.RecommendationsResponse{
		Recommendation:     p.Recommendation,
		InitialStartupLoad: make([]v1.Startup, 0, len(p.InitialStartupLoad)),
	}
	if resp.Recommendation == nil {
		resp.Recommendation = []string{}
	}
	for _, st := range p.InitialStartupLoad {
		resp.InitialStartupLoad = append(resp.InitialStartupLoad, startupToWire(st))
	}
	return resp, nil
}

func startupToWire(st *data.Startup) v1.Startup {
	out := v1.Startup{
		ID:               st.ID.Hex(),
		Name:             st.Name,
		Slogan:           st.Slogan,
		ShortDescription: st.ShortDescription,
		LongDescription:  st.LongDescription,
		Industry:         v1.Option(st.Industry),
		BusinessModel:    v1.Option(st.BusinessModel),
		InvestmentStage:  v1.Option(st.InvestmentStage),
		WebsiteURL:       st.WebsiteURL,
		JobOffers:        make([]v1.JobOffer, 0, len(st.JobOffers)),
		CreatedAt:        st.CreatedAt,
	}
	if st.Logo != nil {
		out.LogoURL = st.Logo.ImageURL
	}
	for _, o := range st.JobOffers {
		req := make([]string, len(o.RequiredSkills))
		for i, id := range o.RequiredSkills {
			req[i] = id.Hex()
		}
		out.JobOffers = append(out.JobOffers, v1.JobOffer{
			ShortDescription: o.ShortDescription,
			LongDescription:  o.LongDescription,
			RequiredSkills:   req,
		})
	}
	return out
}

// streamSender serializes sends on one stream: the session's acks and notifications
// emitted by other connections' goroutines share it.
type streamSender struct {
	mu     sync.Mutex
	stream v1.ChatService_EventsServer
}

func (s *streamSender) Send(ev *v1.ServerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.Send(ev)
}

// Events is the real-time channel. The connection is registered for presence only after
// the client sends register-presence, and unregistered when the stream ends.
func (s *Server) Events(stream v1.ChatService_EventsServer) error {
	claims, ok := getClaimsFromContext(stream.Context())
	if !ok {
		return status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	sender := &streamSender{stream: stream}
	sess := s.newSession(claims.UserID, sender)
	defer sess.Close()
	log.Debugf("events stream %s opened for %s", sess.ID(), claims.UserID)

	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if stream.Context().Err() != nil {
				return nil
			}
			return status.Errorf(codes.Internal, "receive error: %v", err)
		}

		if ack := sess.Handle(stream.Context(), ev); ack != nil {
			if err := sender.Send(ack); err != nil {
				return status.Errorf(codes.Internal, "failed to send ack: %v", err)
			}
		}
	}
}
