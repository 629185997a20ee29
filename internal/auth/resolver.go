package auth

import (
	"github.com/yksirotta/credflow/pkg/domain"
)

// ResolveScheme maps a credential type name to its authentication scheme.
// Parent chains are walked breadth-first with a visited set, so the nearest
// concrete scheme declaration wins and cyclic chains terminate. A custom
// authenticate function found at any level overrides inherited schemes.
func ResolveScheme(typeName string, registry domain.NodeTypeRegistry) (*domain.AuthScheme, error) {
	root, ok := registry.GetCredentialTypeDescriptor(typeName)
	if !ok {
		return nil, &domain.UnknownCredentialTypeError{TypeName: typeName}
	}

	var nearest *domain.AuthScheme

	visited := map[string]bool{typeName: true}
	queue := []*domain.CredentialTypeDescriptor{root}

	for len(queue) > 0 {
		descriptor := queue[0]
		queue = queue[1:]

		if descriptor.Authenticate != nil {
			return &domain.AuthScheme{
				Kind:               domain.AuthSchemeCustom,
				Custom:             &domain.CustomAuthScheme{Authenticate: descriptor.Authenticate},
				RetryOnAuthFailure: descriptor.Scheme != nil && descriptor.Scheme.RetryOnAuthFailure,
			}, nil
		}

		if nearest == nil && descriptor.Scheme != nil {
			nearest = descriptor.Scheme
		}

		for _, parent := range descriptor.ParentTypeNames {
			if visited[parent] {
				continue
			}
			visited[parent] = true

			parentDescriptor, ok := registry.GetCredentialTypeDescriptor(parent)
			if !ok {
				return nil, &domain.UnknownCredentialTypeError{TypeName: parent}
			}
			queue = append(queue, parentDescriptor)
		}
	}

	if nearest == nil {
		return nil, &domain.UnknownCredentialTypeError{TypeName: typeName}
	}

	return nearest, nil
}

// FindPreAuthenticate walks the same parent chain looking for the nearest
// preAuthentication hook.
func FindPreAuthenticate(typeName string, registry domain.NodeTypeRegistry) domain.PreAuthenticateFunc {
	visited := map[string]bool{}
	queue := []string{typeName}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		if visited[name] {
			continue
		}
		visited[name] = true

		descriptor, ok := registry.GetCredentialTypeDescriptor(name)
		if !ok {
			continue
		}
		if descriptor.PreAuthenticate != nil {
			return descriptor.PreAuthenticate
		}

		queue = append(queue, descriptor.ParentTypeNames...)
	}

	return nil
}
