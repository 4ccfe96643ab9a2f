package sqlinline

const QSelectProviderCredential = `--sql 5c0f2d7e-93a1-4b6e-a8d4-1e7b9c3f6a20
select api_key
from provider_credentials
where provider = $1::text
  and btrim(api_key) <> '';
`

const QUpsertProviderCredential = `--sql e41a7b95-2c6d-4f08-9b3e-7d5a0c8f1b64
insert into provider_credentials (provider, api_key, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    api_key = excluded.api_key,
    properties = provider_credentials.properties || excluded.properties,
    updated_at = now();
`
