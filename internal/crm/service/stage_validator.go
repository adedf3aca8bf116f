package service

import (
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
)

// StageValidationError 阶段校验失败，携带全部未满足条件
type StageValidationError struct {
	Errors []string
}

func (e *StageValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// ValidateTransition 校验线索能否进入目标阶段，返回全部未满足条件。
// 纯函数，无副作用；所有适用规则都会评估，不短路。
func ValidateTransition(lead *entity.Lead, targetStage string) []string {
	errs := []string{}

	// 赢单/丢单为终态，不允许再变更
	if entity.IsTerminalStage(lead.Stage) {
		errs = append(errs, "Cannot change stage of a closed lead")
		return errs
	}

	if !entity.IsValidStage(targetStage) {
		errs = append(errs, fmt.Sprintf("Unknown stage %s", targetStage))
		return errs
	}

	// 禁止跳级；丢单可从任意阶段直达，不受跳级限制
	currentIndex := entity.StageIndex(lead.Stage)
	targetIndex := entity.StageIndex(targetStage)
	if targetStage != entity.StageLost && targetIndex > currentIndex+1 {
		errs = append(errs, fmt.Sprintf("Cannot skip from %s to %s", lead.Stage, targetStage))
	}

	switch targetStage {
	case entity.StageQualified:
		if len(lead.ContactAttempts) == 0 && lead.LastContactDate == nil {
			errs = append(errs, "At least one contact attempt must be logged")
		}
	case entity.StageProposalSent:
		if lead.ProposalDocument == nil || *lead.ProposalDocument == "" {
			errs = append(errs, "Proposal document must be attached")
		}
	case entity.StageNegotiation:
		if lead.NextFollowUp == nil {
			errs = append(errs, "Follow-up date must be set")
		}
	case entity.StageWon, entity.StageLost:
		if lead.DealValue == nil || *lead.DealValue == 0 {
			errs = append(errs, "Deal value must be specified")
		}
	}

	return errs
}
