package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type NoticeKind string

const (
	NoticeText         NoticeKind = "text"
	NoticePlanRequest  NoticeKind = "payment_plan_request"
	NoticeConfirmation NoticeKind = "confirmation"
	NoticeRejection    NoticeKind = "rejection"
	NoticeReminder     NoticeKind = "reminder"
)

type ProposalState string

const (
	ProposalOpen      ProposalState = "open"
	ProposalAccepted  ProposalState = "accepted"
	ProposalRejected  ProposalState = "rejected"
	ProposalCountered ProposalState = "countered"
)

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Notice is an immutable party-to-party message. Only Read, and for plan
// requests ProposalState/Version, change after insert.
type Notice struct {
	ID             string        `json:"id"`
	RelationshipID string        `json:"relationship_id"`
	Seq            int64         `json:"seq"`
	SenderID       string        `json:"sender_id"`
	ReceiverID     string        `json:"receiver_id"`
	Kind           NoticeKind    `json:"kind"`
	Body           MessageBody   `json:"body"`
	Attachment     *Attachment   `json:"attachment,omitempty"`
	Read           bool          `json:"read"`
	ProposalState  ProposalState `json:"proposal_state,omitempty"`
	Version        int           `json:"version"`
	CreatedAt      time.Time     `json:"created_at"`
}

// PlanProposal is the structured payload of a payment plan request.
type PlanProposal struct {
	CurrentPlanID     *string    `json:"current_plan_id,omitempty"`
	Current           *PlanTerms `json:"current,omitempty"`
	Proposed          PlanTerms  `json:"proposed"`
	ProposedPlanID    string     `json:"proposed_plan_id"`
	Reason            string     `json:"reason,omitempty"`
	PreviousRequestID *string    `json:"previous_request_id,omitempty"`
}

type BodyKind string

const (
	BodyText     BodyKind = "text"
	BodyProposal BodyKind = "plan_proposal"
)

// MessageBody is either free text or a plan proposal. The variant is fixed
// when the body is constructed.
type MessageBody struct {
	kind     BodyKind
	text     string
	proposal *PlanProposal
}

func TextBody(text string) MessageBody {
	return MessageBody{kind: BodyText, text: text}
}

func ProposalBody(p PlanProposal) MessageBody {
	return MessageBody{kind: BodyProposal, proposal: &p}
}

func (b MessageBody) Kind() BodyKind { return b.kind }

func (b MessageBody) Text() (string, bool) {
	return b.text, b.kind == BodyText
}

func (b MessageBody) Proposal() (PlanProposal, bool) {
	if b.kind != BodyProposal || b.proposal == nil {
		return PlanProposal{}, false
	}
	return *b.proposal, true
}

type wireBody struct {
	Type     BodyKind      `json:"type"`
	Text     string        `json:"text,omitempty"`
	Proposal *PlanProposal `json:"proposal,omitempty"`
}

func (b MessageBody) MarshalJSON() ([]byte, error) {
	switch b.kind {
	case BodyText:
		return json.Marshal(wireBody{Type: BodyText, Text: b.text})
	case BodyProposal:
		return json.Marshal(wireBody{Type: BodyProposal, Proposal: b.proposal})
	case "":
		return []byte("null"), nil
	}
	return nil, fmt.Errorf("message body: unknown kind %q", b.kind)
}

func (b *MessageBody) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = MessageBody{}
		return nil
	}
	var w wireBody
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case BodyText:
		*b = TextBody(w.Text)
	case BodyProposal:
		if w.Proposal == nil {
			return errors.New("message body: plan_proposal without payload")
		}
		*b = ProposalBody(*w.Proposal)
	default:
		return fmt.Errorf("message body: unknown type %q", w.Type)
	}
	return nil
}
