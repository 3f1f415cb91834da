package report

import (
	"strconv"
	"time"

	"f0oster/reconspy/identity"
)

// Feature selects one per-object attribute to include on the emitted
// element. Feature names are part of the wire contract.
type Feature string

const (
	FeatureKey                 Feature = "key"
	FeatureUsername            Feature = "username"
	FeatureGroupName           Feature = "groupName"
	FeatureWorkflowID          Feature = "workflowId"
	FeatureStatus              Feature = "status"
	FeatureCreationDate        Feature = "creationDate"
	FeatureLastLoginDate       Feature = "lastLoginDate"
	FeatureChangePwdDate       Feature = "changePwdDate"
	FeaturePasswordHistorySize Feature = "passwordHistorySize"
	FeatureFailedLoginCount    Feature = "failedLoginCount"
)

// AllFeatures in their canonical emission order.
var AllFeatures = []Feature{
	FeatureKey,
	FeatureUsername,
	FeatureGroupName,
	FeatureWorkflowID,
	FeatureStatus,
	FeatureCreationDate,
	FeatureLastLoginDate,
	FeatureChangePwdDate,
	FeaturePasswordHistorySize,
	FeatureFailedLoginCount,
}

// featureRenderers maps each feature to its extraction rule. A renderer
// returning ok=false means the feature does not apply to the object's
// kind and the attribute is omitted entirely.
var featureRenderers = map[Feature]func(identity.Any) (typ, value string, ok bool){
	FeatureKey: func(any identity.Any) (string, string, bool) {
		return XSDLong, strconv.FormatInt(any.Key(), 10), true
	},
	FeatureUsername: func(any identity.Any) (string, string, bool) {
		user, isUser := any.(*identity.User)
		if !isUser {
			return "", "", false
		}
		return XSDString, user.Username, true
	},
	FeatureGroupName: func(any identity.Any) (string, string, bool) {
		group, isGroup := any.(*identity.Group)
		if !isGroup {
			return "", "", false
		}
		return XSDString, group.Name, true
	},
	FeatureWorkflowID: func(any identity.Any) (string, string, bool) {
		return XSDLong, strconv.FormatInt(any.WorkflowID(), 10), true
	},
	FeatureStatus: func(any identity.Any) (string, string, bool) {
		return XSDString, any.Status(), true
	},
	FeatureCreationDate: func(any identity.Any) (string, string, bool) {
		return XSDDateTime, formatDate(any.CreationDate()), true
	},
	FeatureLastLoginDate: func(any identity.Any) (string, string, bool) {
		user, isUser := any.(*identity.User)
		if !isUser {
			return "", "", false
		}
		return XSDDateTime, formatDate(user.LastLoginDate), true
	},
	FeatureChangePwdDate: func(any identity.Any) (string, string, bool) {
		user, isUser := any.(*identity.User)
		if !isUser {
			return "", "", false
		}
		return XSDDateTime, formatDate(user.ChangePwdDate), true
	},
	FeaturePasswordHistorySize: func(any identity.Any) (string, string, bool) {
		user, isUser := any.(*identity.User)
		if !isUser {
			return "", "", false
		}
		return XSDInt, strconv.Itoa(len(user.PasswordHistory)), true
	},
	FeatureFailedLoginCount: func(any identity.Any) (string, string, bool) {
		user, isUser := any.(*identity.User)
		if !isUser {
			return "", "", false
		}
		return XSDInt, strconv.Itoa(user.FailedLogins), true
	},
}

// featureAttrs renders the configured features for one object, in
// configuration order. A nil timestamp renders as an empty string, not as
// an absent attribute.
func featureAttrs(features []Feature, any identity.Any) []Attr {
	var attrs []Attr
	for _, feature := range features {
		render, known := featureRenderers[feature]
		if !known {
			continue
		}
		typ, value, ok := render(any)
		if !ok {
			continue
		}
		attrs = append(attrs, Attr{Name: string(feature), Type: typ, Value: value})
	}
	return attrs
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
