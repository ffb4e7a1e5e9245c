package httpapi

import (
	"net/http"
)

type SendCodeRequest struct {
	Email string `json:"email"`
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Pubkey   string `json:"pubkey"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Pubkey   string `json:"pubkey"`
	Password string `json:"password"`
}

type AddDeviceRequest struct {
	Pubkey string `json:"pubkey"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

func (s *HTTPServer) sendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.pairing.SendCode(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) signUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.pairing.SignUp(r.Context(), req.Email, req.Code, req.Pubkey, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

func (s *HTTPServer) login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.pairing.Login(r.Context(), req.Email, req.Pubkey, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

func (s *HTTPServer) requestVerification(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.pairing.RequestVerification(r.Context(), req.Email, req.Pubkey, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

func (s *HTTPServer) listDevices(w http.ResponseWriter, r *http.Request) {
	list, err := s.devices.ListDevices(r.Context(), caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *HTTPServer) addDevice(w http.ResponseWriter, r *http.Request) {
	var req AddDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.pairing.AddDevice(r.Context(), caller(r), req.Pubkey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *HTTPServer) deleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.devices.DeleteDevice(r.Context(), caller(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
